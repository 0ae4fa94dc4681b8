package core

import (
	"path/filepath"
	"regexp"
	"strings"
)

var (
	goalKeywords = []string{
		"help", "create", "build", "implement", "fix", "debug", "setup",
		"install", "configure", "optimize", "refactor", "update", "add",
		"remove", "deploy", "test", "analyze", "understand", "explain",
	}

	solutionPhrases = []string{
		"fixed", "solved", "working", "success", "completed", "done",
		"resolved", "corrected", "updated", "implemented",
	}

	decisionPhrases = []string{
		"decided to", "chose to", "selected", "will use", "going with",
		"better to", "instead of", "approach", "strategy", "plan",
	}

	learningPhrases = []string{
		"learned", "discovered", "found out", "realized", "understood",
		"turns out", "it appears", "the issue was", "the solution is",
	}

	followUpPhrases = []string{
		"next step", "should", "need to", "todo", "later", "follow up",
		"consider", "might want", "could also", "future", "next time",
	}
)

var (
	goalKeywordSet = toSet(goalKeywords)

	solutionPattern = phrasePattern(solutionPhrases)
	decisionPattern = phrasePattern(decisionPhrases)
	learningPattern = phrasePattern(learningPhrases)
	followUpPattern = phrasePattern(followUpPhrases)

	// wordPattern splits text into vocabulary tokens; '+' and '#' keep
	// "c++" and "c#" whole.
	wordPattern = regexp.MustCompile(`[a-z0-9][a-z0-9+#._-]*`)

	sentenceBreak = regexp.MustCompile(`[.!?]+(?:\s+|$)|\n+`)
)

// technologyNames maps lower-case tokens to display names.
var technologyNames = map[string]string{
	"python":        "Python",
	"javascript":    "JavaScript",
	"typescript":    "TypeScript",
	"java":          "Java",
	"golang":        "Go",
	"rust":          "Rust",
	"c++":           "C++",
	"c#":            "C#",
	"php":           "PHP",
	"ruby":          "Ruby",
	"react":         "React",
	"vue":           "Vue",
	"angular":       "Angular",
	"django":        "Django",
	"flask":         "Flask",
	"express":       "Express",
	"fastapi":       "FastAPI",
	"spring":        "Spring",
	"node":          "Node.js",
	"node.js":       "Node.js",
	"nodejs":        "Node.js",
	"docker":        "Docker",
	"kubernetes":    "Kubernetes",
	"kubectl":       "Kubernetes",
	"k8s":           "Kubernetes",
	"git":           "Git",
	"npm":           "npm",
	"pip":           "pip",
	"yarn":          "Yarn",
	"webpack":       "Webpack",
	"babel":         "Babel",
	"terraform":     "Terraform",
	"graphql":       "GraphQL",
	"postgres":      "PostgreSQL",
	"postgresql":    "PostgreSQL",
	"psql":          "PostgreSQL",
	"mysql":         "MySQL",
	"mongodb":       "MongoDB",
	"redis":         "Redis",
	"elasticsearch": "Elasticsearch",
	"sqlite":        "SQLite",
	"nats":          "NATS",
	"aws":           "AWS",
	"azure":         "Azure",
	"gcp":           "GCP",
	"heroku":        "Heroku",
	"vercel":        "Vercel",
	"netlify":       "Netlify",
}

// commandTechnologies maps the first word of a shell command to a
// technology. Words like "go" are too common in prose to match elsewhere.
var commandTechnologies = map[string]string{
	"go":      "Go",
	"cargo":   "Rust",
	"python":  "Python",
	"python3": "Python",
	"pytest":  "Python",
	"node":    "Node.js",
	"npx":     "Node.js",
	"mvn":     "Java",
	"gradle":  "Java",
	"bundle":  "Ruby",
}

// extensionLanguages maps file extensions to languages.
var extensionLanguages = map[string]string{
	".py":   "Python",
	".js":   "JavaScript",
	".jsx":  "JavaScript",
	".mjs":  "JavaScript",
	".ts":   "TypeScript",
	".tsx":  "TypeScript",
	".java": "Java",
	".go":   "Go",
	".rs":   "Rust",
	".rb":   "Ruby",
	".php":  "PHP",
	".cpp":  "C++",
	".cc":   "C++",
	".hpp":  "C++",
	".cs":   "C#",
	".vue":  "Vue",
	".tf":   "Terraform",
}

func toSet(words []string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

func phrasePattern(phrases []string) *regexp.Regexp {
	quoted := make([]string, len(phrases))
	for i, p := range phrases {
		quoted[i] = regexp.QuoteMeta(p)
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

// splitSentences breaks text into trimmed, non-empty sentences.
func splitSentences(text string) []string {
	var out []string
	for _, s := range sentenceBreak.Split(text, -1) {
		s = strings.Join(strings.Fields(s), " ")
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// technologiesInText adds every vocabulary token found in text to found.
func technologiesInText(text string, found map[string]bool) {
	for _, tok := range wordPattern.FindAllString(strings.ToLower(text), -1) {
		tok = strings.TrimRight(tok, ".-_")
		if name, ok := technologyNames[tok]; ok {
			found[name] = true
		}
	}
}

// technologyForPath maps a file path to a language by extension.
func technologyForPath(path string) (string, bool) {
	name, ok := extensionLanguages[strings.ToLower(filepath.Ext(path))]
	return name, ok
}

// technologyForCommand maps the first word of a command to a technology.
func technologyForCommand(cmd string) (string, bool) {
	fields := strings.Fields(cmd)
	if len(fields) == 0 {
		return "", false
	}
	name, ok := commandTechnologies[filepath.Base(fields[0])]
	return name, ok
}
