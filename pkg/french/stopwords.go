package french

// Interrogative and question-scaffolding words stripped from questions
// before lexical matching.
var interrogatives = map[string]struct{}{
	"qui":      {},
	"que":      {},
	"quoi":     {},
	"quel":     {},
	"quelle":   {},
	"quels":    {},
	"quelles":  {},
	"où":       {},
	"quand":    {},
	"comment":  {},
	"pourquoi": {},
	"combien":  {},
	"dont":     {},
}

// Common French function words removed before lexical ranking.
var stopwords = map[string]struct{}{
	"le": {}, "la": {}, "les": {}, "un": {}, "une": {}, "des": {}, "du": {}, "de": {},
	"et": {}, "ou": {}, "mais": {}, "donc": {}, "or": {}, "ni": {}, "car": {},
	"à": {}, "au": {}, "aux": {}, "en": {}, "dans": {}, "par": {}, "pour": {},
	"sur": {}, "sous": {}, "avec": {}, "sans": {}, "vers": {}, "chez": {},
	"entre": {}, "contre": {}, "pendant": {}, "depuis": {}, "avant": {}, "après": {},
	"est": {}, "sont": {}, "être": {}, "avoir": {}, "ont": {}, "était": {},
	"étaient": {}, "sera": {}, "seront": {}, "été": {}, "fut": {}, "soit": {},
	"ce": {}, "cet": {}, "cette": {}, "ces": {}, "cela": {}, "ceci": {},
	"celui": {}, "celle": {}, "ceux": {}, "celles": {},
	"se": {}, "sa": {}, "son": {}, "ses": {}, "leur": {}, "leurs": {},
	"mon": {}, "ma": {}, "mes": {}, "ton": {}, "ta": {}, "tes": {},
	"notre": {}, "nos": {}, "votre": {}, "vos": {},
	"je": {}, "tu": {}, "il": {}, "elle": {}, "on": {}, "nous": {}, "vous": {},
	"ils": {}, "elles": {}, "lui": {}, "moi": {}, "toi": {}, "soi": {},
	"ne": {}, "pas": {}, "plus": {}, "moins": {}, "très": {}, "bien": {},
	"tout": {}, "toute": {}, "tous": {}, "toutes": {}, "aussi": {}, "comme": {},
	"même": {}, "autre": {}, "autres": {}, "alors": {}, "ainsi": {}, "encore": {},
	"déjà": {}, "ici": {}, "là": {}, "si": {}, "oui": {}, "non": {}, "y": {},
	"peu": {}, "peut": {}, "faut": {}, "fait": {}, "faire": {},
}

// IsInterrogative reports whether the lowercased token is a French question word.
func IsInterrogative(word string) bool {
	_, ok := interrogatives[word]
	return ok
}

// IsStopword reports whether the lowercased token is a French function word.
// Interrogatives count as stopwords too.
func IsStopword(word string) bool {
	if _, ok := stopwords[word]; ok {
		return true
	}
	return IsInterrogative(word)
}
