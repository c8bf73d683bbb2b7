package geo

import "github.com/findmycure/findmycure-italia/internal/normalize"

// cityRegions maps folded Italian city names to their administrative region.
// Covers the provincial capitals plus the larger municipalities that show up
// in location searches; anything missing falls through to geocoding.
var cityRegions = map[string]string{
	// Lombardia
	"milano": "Lombardia", "bergamo": "Lombardia", "brescia": "Lombardia",
	"como": "Lombardia", "cremona": "Lombardia", "lecco": "Lombardia",
	"lodi": "Lombardia", "mantova": "Lombardia", "monza": "Lombardia",
	"pavia": "Lombardia", "sondrio": "Lombardia", "varese": "Lombardia",
	// Lazio
	"roma": "Lazio", "frosinone": "Lazio", "latina": "Lazio",
	"rieti": "Lazio", "viterbo": "Lazio", "civitavecchia": "Lazio",
	"albano laziale": "Lazio",
	// Campania
	"napoli": "Campania", "avellino": "Campania", "benevento": "Campania",
	"caserta": "Campania", "salerno": "Campania",
	// Piemonte
	"torino": "Piemonte", "alessandria": "Piemonte", "asti": "Piemonte",
	"biella": "Piemonte", "cuneo": "Piemonte", "novara": "Piemonte",
	"vercelli": "Piemonte",
	// Veneto
	"venezia": "Veneto", "belluno": "Veneto", "padova": "Veneto",
	"rovigo": "Veneto", "treviso": "Veneto", "verona": "Veneto",
	"vicenza": "Veneto",
	// Emilia-Romagna
	"bologna": "Emilia-Romagna", "ferrara": "Emilia-Romagna",
	"forli": "Emilia-Romagna", "modena": "Emilia-Romagna",
	"parma": "Emilia-Romagna", "piacenza": "Emilia-Romagna",
	"ravenna": "Emilia-Romagna", "reggio emilia": "Emilia-Romagna",
	"rimini": "Emilia-Romagna",
	// Toscana
	"firenze": "Toscana", "arezzo": "Toscana", "grosseto": "Toscana",
	"livorno": "Toscana", "lucca": "Toscana", "massa": "Toscana",
	"pisa": "Toscana", "pistoia": "Toscana", "prato": "Toscana",
	"siena": "Toscana",
	// Puglia
	"bari": "Puglia", "barletta": "Puglia", "brindisi": "Puglia",
	"foggia": "Puglia", "lecce": "Puglia", "taranto": "Puglia",
	// Sicilia
	"palermo": "Sicilia", "agrigento": "Sicilia", "caltanissetta": "Sicilia",
	"catania": "Sicilia", "enna": "Sicilia", "messina": "Sicilia",
	"ragusa": "Sicilia", "siracusa": "Sicilia", "trapani": "Sicilia",
	// Sardegna
	"cagliari": "Sardegna", "nuoro": "Sardegna", "oristano": "Sardegna",
	"sassari": "Sardegna",
	// Liguria
	"genova": "Liguria", "imperia": "Liguria", "la spezia": "Liguria",
	"savona": "Liguria",
	// Calabria
	"catanzaro": "Calabria", "cosenza": "Calabria", "crotone": "Calabria",
	"reggio calabria": "Calabria", "vibo valentia": "Calabria",
	// Marche
	"ancona": "Marche", "ascoli piceno": "Marche", "fermo": "Marche",
	"macerata": "Marche", "pesaro": "Marche", "urbino": "Marche",
	// Abruzzo
	"l'aquila": "Abruzzo", "chieti": "Abruzzo", "pescara": "Abruzzo",
	"teramo": "Abruzzo",
	// Umbria
	"perugia": "Umbria", "terni": "Umbria",
	// Friuli-Venezia Giulia
	"trieste": "Friuli-Venezia Giulia", "gorizia": "Friuli-Venezia Giulia",
	"pordenone": "Friuli-Venezia Giulia", "udine": "Friuli-Venezia Giulia",
	// Trentino-Alto Adige
	"trento": "Trentino", "bolzano": "Trentino",
	"rovereto": "Trentino", "pergine valsugana": "Trentino",
	"cavalese": "Trentino", "cles": "Trentino",
	// Basilicata
	"potenza": "Basilicata", "matera": "Basilicata",
	// Molise
	"campobasso": "Molise", "isernia": "Molise",
	// Valle d'Aosta
	"aosta": "Valle d'Aosta",
}

// RegionForCity resolves a free-text location to a region name via the city
// map. The second return is false when the text is not a known city.
func RegionForCity(location string) (string, bool) {
	region, ok := cityRegions[normalize.Fold(location)]
	return region, ok
}
