package template

// Built-in interview templates. Every built-in carries the same number of
// questions in each supported language.
func builtinTemplates() []Template {
	return []Template{
		{
			ID:   "personal",
			Name: "Personal Interview",
			Questions: map[string][]string{
				"en": {
					"What is your name?",
					"What is your age?",
					"How are you feeling today?",
					"What's your favorite color?",
					"Tell me about your hobbies.",
				},
				"hi": {
					"आपका नाम क्या है?",
					"आपकी उम्र क्या है?",
					"आज आप कैसा महसूस कर रहे हैं?",
					"आपका पसंदीदा रंग क्या है?",
					"अपने शौक के बारे में बताएं।",
				},
			},
		},
		{
			ID:   "professional",
			Name: "Professional Interview",
			Questions: map[string][]string{
				"en": {
					"What is your professional background?",
					"Describe your ideal work environment",
					"What are your career goals?",
					"What's your greatest professional achievement?",
					"How do you handle workplace challenges?",
				},
				"hi": {
					"आपका पेशेवर पृष्ठभूमि क्या है?",
					"अपने आदर्श कार्य वातावरण का वर्णन करें",
					"आपके करियर के लक्ष्य क्या हैं?",
					"आपकी सबसे बड़ी पेशेवर उपलब्धि क्या है?",
					"आप कार्यस्थल की चुनौतियों को कैसे संभालते हैं?",
				},
			},
		},
		{
			ID:   "educational",
			Name: "Educational Interview",
			Questions: map[string][]string{
				"en": {
					"What is your educational background?",
					"What subjects interest you most?",
					"Describe your learning style",
					"What are your academic goals?",
					"How do you approach studying?",
				},
				"hi": {
					"आपकी शैक्षिक पृष्ठभूमि क्या है?",
					"आपको सबसे अधिक रुचि वाले विषय क्या हैं?",
					"अपनी सीखने की शैली का वर्णन करें",
					"आपके शैक्षिक लक्ष्य क्या हैं?",
					"आप अध्ययन के लिए कैसे तैयारी करते हैं?",
				},
			},
		},
	}
}
