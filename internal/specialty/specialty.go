// Package specialty maps free-text specialty terms from regional datasets and
// user queries onto the canonical specialty vocabulary. Matching is a
// deterministic synonym-table lookup so the mapping stays testable and
// auditable.
package specialty

import "github.com/findmycure/findmycure-italia/internal/normalize"

// synonyms maps a folded source label to its canonical specialty name.
// Keys must already be in normalize.Fold form.
var synonyms = map[string]string{
	"cardiologia":                "Cardiologia",
	"cardio":                     "Cardiologia",
	"ortopedia":                  "Ortopedia",
	"traumatologia":              "Ortopedia e Traumatologia",
	"ortopedia e traumatologia":  "Ortopedia e Traumatologia",
	"pediatria":                  "Pediatria",
	"neonatologia":               "Neonatologia",
	"medicina generale":          "Medicina Generale",
	"medicina di base":           "Medicina Generale",
	"medicina interna":           "Medicina Interna",
	"ginecologia":                "Ginecologia e Ostetricia",
	"ostetricia":                 "Ginecologia e Ostetricia",
	"ginecologia e ostetricia":   "Ginecologia e Ostetricia",
	"neurologia":                 "Neurologia",
	"neurochirurgia":             "Neurochirurgia",
	"psichiatria":                "Psichiatria",
	"psicologia":                 "Psicologia",
	"dermatologia":               "Dermatologia",
	"oculistica":                 "Oculistica",
	"oftalmologia":               "Oculistica",
	"otorino":                    "Otorinolaringoiatria",
	"otorinolaringoiatria":       "Otorinolaringoiatria",
	"orl":                        "Otorinolaringoiatria",
	"urologia":                   "Urologia",
	"oncologia":                  "Oncologia",
	"radioterapia":               "Radioterapia",
	"radiologia":                 "Radiologia",
	"diagnostica":                "Diagnostica per Immagini",
	"diagnostica per immagini":   "Diagnostica per Immagini",
	"laboratorio":                "Analisi Cliniche",
	"laboratorio analisi":        "Analisi Cliniche",
	"analisi":                    "Analisi Cliniche",
	"analisi cliniche":           "Analisi Cliniche",
	"pronto soccorso":            "Pronto Soccorso",
	"emergenza":                  "Pronto Soccorso",
	"urgenza":                    "Pronto Soccorso",
	"ambulatorio":                "Ambulatorio",
	"fisioterapia":               "Fisioterapia",
	"riabilitazione":             "Riabilitazione",
	"geriatria":                  "Geriatria",
	"chirurgia":                  "Chirurgia Generale",
	"chirurgia generale":         "Chirurgia Generale",
	"gastroenterologia":          "Gastroenterologia",
	"endocrinologia":             "Endocrinologia",
	"pneumologia":                "Pneumologia",
	"reumatologia":               "Reumatologia",
	"allergologia":               "Allergologia",
	"ematologia":                 "Ematologia",
	"nefrologia":                 "Nefrologia",
	"odontoiatria":               "Odontoiatria",
	"medicina dello sport":       "Medicina dello Sport",
	"medicina sportiva":          "Medicina dello Sport",
	"neuropsichiatria infantile": "Neuropsichiatria Infantile",

	// English search terms from the UI.
	"cardiology":    "Cardiologia",
	"orthopedics":   "Ortopedia",
	"oncology":      "Oncologia",
	"neurology":     "Neurologia",
	"pediatrics":    "Pediatria",
	"dermatology":   "Dermatologia",
	"gynecology":    "Ginecologia e Ostetricia",
	"urology":       "Urologia",
	"radiology":     "Radiologia",
	"psychiatry":    "Psichiatria",
	"ophthalmology": "Oculistica",
	"surgery":       "Chirurgia Generale",

	// Profession terms users type in place of the specialty name.
	"cardiologo":          "Cardiologia",
	"cardiologa":          "Cardiologia",
	"oncologo":            "Oncologia",
	"oncologa":            "Oncologia",
	"ortopedico":          "Ortopedia",
	"ortopedica":          "Ortopedia",
	"neurologo":           "Neurologia",
	"neurologa":           "Neurologia",
	"neurochirurgo":       "Neurochirurgia",
	"dermatologo":         "Dermatologia",
	"dermatologa":         "Dermatologia",
	"gastroenterologo":    "Gastroenterologia",
	"gastroenterologa":    "Gastroenterologia",
	"ginecologo":          "Ginecologia e Ostetricia",
	"ginecologa":          "Ginecologia e Ostetricia",
	"ostetrica":           "Ginecologia e Ostetricia",
	"urologo":             "Urologia",
	"urologa":             "Urologia",
	"oculista":            "Oculistica",
	"oftalmologo":         "Oculistica",
	"oftalmologa":         "Oculistica",
	"otorinolaringoiatra": "Otorinolaringoiatria",
	"pediatra":            "Pediatria",
	"psichiatra":          "Psichiatria",
	"psicologo":           "Psicologia",
	"psicologa":           "Psicologia",
	"dentista":            "Odontoiatria",
	"odontoiatra":         "Odontoiatria",
	"endocrinologo":       "Endocrinologia",
	"endocrinologa":       "Endocrinologia",
	"radiologo":           "Radiologia",
	"radiologa":           "Radiologia",
	"reumatologo":         "Reumatologia",
	"reumatologa":         "Reumatologia",
	"pneumologo":          "Pneumologia",
	"pneumologa":          "Pneumologia",
	"ematologo":           "Ematologia",
	"ematologa":           "Ematologia",
	"nefrologo":           "Nefrologia",
	"nefrologa":           "Nefrologia",
	"allergologo":         "Allergologia",
	"allergologa":         "Allergologia",
	"internista":          "Medicina Interna",
	"chirurgo":            "Chirurgia Generale",
	"chirurga":            "Chirurgia Generale",
	"fisioterapista":      "Fisioterapia",
	"geriatra":            "Geriatria",
	"medico sportivo":     "Medicina dello Sport",
}

// expansions maps a folded search term to the set of canonical specialties a
// facility may satisfy it with. A facility matches when it holds a rating in
// ANY of the expanded names. Terms absent from this table fall back to their
// single canonical name.
var expansions = map[string][]string{
	"cardiologia":          {"Cardiologia", "Medicina Interna", "Medicina Generale"},
	"chirurgia":            {"Chirurgia Generale", "Ortopedia e Traumatologia", "Neurochirurgia"},
	"dermatologia":         {"Dermatologia", "Allergologia", "Medicina Interna"},
	"diagnostica":          {"Diagnostica per Immagini", "Radiologia", "Analisi Cliniche"},
	"ematologia":           {"Ematologia", "Oncologia", "Medicina Interna"},
	"endocrinologia":       {"Endocrinologia", "Medicina Interna", "Medicina Generale"},
	"gastroenterologia":    {"Gastroenterologia", "Chirurgia Generale", "Medicina Interna"},
	"ginecologia":          {"Ginecologia e Ostetricia"},
	"medicina interna":     {"Medicina Interna", "Medicina Generale", "Geriatria"},
	"medicina d'urgenza":   {"Pronto Soccorso"},
	"medicina generale":    {"Medicina Generale", "Medicina Interna"},
	"medico":               {"Medicina Generale", "Medicina Interna"},
	"dottore":              {"Medicina Generale", "Medicina Interna"},
	"neurologia":           {"Neurologia", "Neurochirurgia"},
	"oculistica":           {"Oculistica"},
	"oncologia":            {"Oncologia", "Ematologia", "Radioterapia"},
	"ortopedia":            {"Ortopedia", "Ortopedia e Traumatologia", "Fisioterapia", "Riabilitazione"},
	"otorinolaringoiatria": {"Otorinolaringoiatria"},
	"pediatria":            {"Pediatria", "Neonatologia", "Neuropsichiatria Infantile"},
	"pneumologia":          {"Pneumologia", "Medicina Interna"},
	"psichiatria":          {"Psichiatria", "Neurologia"},
	"radiologia":           {"Radiologia", "Diagnostica per Immagini", "Radioterapia"},
	"reumatologia":         {"Reumatologia", "Ortopedia", "Medicina Interna"},
	"riabilitazione":       {"Riabilitazione", "Fisioterapia", "Ortopedia"},
	"urologia":             {"Urologia", "Nefrologia", "Chirurgia Generale"},
}

// symptoms maps folded complaints, body parts, and condition names from the
// search box to the specialties that treat them, so a search for the problem
// finds the right departments without the user knowing the discipline name.
var symptoms = map[string][]string{
	// Heart and circulation.
	"cuore":           {"Cardiologia", "Medicina Interna"},
	"pressione":       {"Cardiologia", "Medicina Interna", "Nefrologia"},
	"ipertensione":    {"Cardiologia", "Medicina Interna", "Nefrologia"},
	"colesterolo":     {"Cardiologia", "Medicina Interna", "Endocrinologia"},
	"aritmia":         {"Cardiologia"},
	"infarto":         {"Cardiologia", "Pronto Soccorso"},
	"ictus":           {"Neurologia", "Pronto Soccorso"},
	"petto":           {"Cardiologia", "Pneumologia", "Medicina Interna"},
	"torace":          {"Cardiologia", "Pneumologia", "Medicina Interna"},
	"dolore al petto": {"Cardiologia", "Pneumologia"},

	// Bones, joints, and movement.
	"schiena":        {"Ortopedia", "Reumatologia", "Fisioterapia", "Neurologia"},
	"mal di schiena": {"Ortopedia", "Fisioterapia", "Neurologia"},
	"cervicale":      {"Ortopedia", "Fisioterapia", "Neurologia"},
	"ginocchio":      {"Ortopedia", "Fisioterapia", "Medicina dello Sport"},
	"anca":           {"Ortopedia", "Fisioterapia"},
	"spalla":         {"Ortopedia", "Fisioterapia"},
	"frattura":       {"Ortopedia e Traumatologia", "Ortopedia"},
	"artrite":        {"Reumatologia", "Ortopedia", "Medicina Interna"},
	"artrosi":        {"Ortopedia", "Reumatologia", "Fisioterapia"},
	"osteoporosi":    {"Ortopedia", "Endocrinologia", "Reumatologia"},
	"tendinite":      {"Ortopedia", "Medicina dello Sport", "Fisioterapia"},

	// Digestion.
	"stomaco":        {"Gastroenterologia", "Medicina Interna"},
	"mal di stomaco": {"Gastroenterologia", "Medicina Interna"},
	"intestino":      {"Gastroenterologia", "Chirurgia Generale"},
	"colon":          {"Gastroenterologia", "Chirurgia Generale", "Oncologia"},
	"fegato":         {"Gastroenterologia", "Medicina Interna"},
	"reflusso":       {"Gastroenterologia", "Medicina Interna"},
	"gastrite":       {"Gastroenterologia"},
	"celiachia":      {"Gastroenterologia", "Allergologia"},

	// Breathing, ear, nose, and throat.
	"polmoni":     {"Pneumologia", "Medicina Interna"},
	"respiro":     {"Pneumologia", "Cardiologia", "Allergologia"},
	"asma":        {"Pneumologia", "Allergologia"},
	"bronchite":   {"Pneumologia", "Medicina Interna"},
	"tosse":       {"Pneumologia", "Otorinolaringoiatria", "Allergologia"},
	"sinusite":    {"Otorinolaringoiatria", "Allergologia"},
	"naso":        {"Otorinolaringoiatria"},
	"gola":        {"Otorinolaringoiatria", "Gastroenterologia"},
	"mal di gola": {"Otorinolaringoiatria", "Medicina Interna"},
	"orecchio":    {"Otorinolaringoiatria"},
	"udito":       {"Otorinolaringoiatria"},

	// Skin and allergies.
	"pelle":    {"Dermatologia", "Allergologia"},
	"prurito":  {"Dermatologia", "Allergologia"},
	"allergia": {"Allergologia", "Dermatologia"},

	// Kidneys and urinary tract.
	"reni":     {"Nefrologia", "Urologia"},
	"vescica":  {"Urologia", "Ginecologia e Ostetricia"},
	"urina":    {"Urologia", "Nefrologia"},
	"prostata": {"Urologia", "Oncologia"},

	// Hormones and metabolism.
	"diabete": {"Endocrinologia", "Medicina Interna"},
	"tiroide": {"Endocrinologia"},

	// Head, eyes, and mind.
	"testa":        {"Neurologia", "Otorinolaringoiatria", "Oculistica"},
	"mal di testa": {"Neurologia", "Medicina Interna"},
	"occhi":        {"Oculistica", "Neurologia"},
	"vista":        {"Oculistica", "Neurologia"},
	"ansia":        {"Psichiatria", "Psicologia"},
	"depressione":  {"Psichiatria", "Psicologia"},

	// Tumors and women's health.
	"tumore":     {"Oncologia", "Chirurgia Generale"},
	"cancro":     {"Oncologia", "Medicina Interna"},
	"seno":       {"Oncologia", "Ginecologia e Ostetricia"},
	"gravidanza": {"Ginecologia e Ostetricia"},

	// General complaints.
	"febbre":       {"Medicina Interna", "Medicina Generale"},
	"stanchezza":   {"Medicina Interna", "Ematologia", "Endocrinologia"},
	"dolore":       {"Medicina Interna", "Fisioterapia"},
	"mal di denti": {"Odontoiatria"},
}

// Canonicalize resolves a raw source label to its canonical specialty name.
// Unknown labels keep their title-cased form so new specialties from future
// datasets still get a stable, readable name.
func Canonicalize(raw string) string {
	key := normalize.Fold(raw)
	if key == "" {
		return ""
	}
	if canonical, ok := synonyms[key]; ok {
		return canonical
	}
	return normalize.TitleCase(raw)
}

// Expand returns the canonical specialty names a free-text search term maps
// to, trying the specialty expansions first, then the symptom and condition
// vocabulary, then plain synonyms. The empty slice means the term matched
// nothing in the vocabulary, a state the search layer reports separately
// from "zero facilities found".
func Expand(term string) []string {
	key := normalize.Fold(term)
	if key == "" {
		return nil
	}
	if names, ok := expansions[key]; ok {
		out := make([]string, len(names))
		copy(out, names)
		return out
	}
	if names, ok := symptoms[key]; ok {
		out := make([]string, len(names))
		copy(out, names)
		return out
	}
	if canonical, ok := synonyms[key]; ok {
		return []string{canonical}
	}
	return nil
}

// Known reports whether a term resolves to at least one canonical specialty.
func Known(term string) bool {
	return len(Expand(term)) > 0
}
