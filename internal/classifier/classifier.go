package classifier

import (
	"regexp"
	"strconv"

	"github.com/manuchak/detecta-core/internal/models"
	"github.com/manuchak/detecta-core/pkg/utils"
)

var (
	armsPattern = regexp.MustCompile(`\b(armas?|armad[oa]s?|pistolas?|rifles?|fusil(es)?|cuernos? de chivo|disparos?|balazos?|balacera|calibre)\b`)

	victimsPattern = regexp.MustCompile(`\b(\d+|un|una|uno|dos|tres|cuatro|cinco|seis|siete|ocho|nueve|diez)\s+(personas?\s+)?(muert[oa]s?|herid[oa]s?|victimas?|lesionad[oa]s?|fallecid[oa]s?|sin vida)\b`)

	numberWords = map[string]int{
		"un": 1, "una": 1, "uno": 1, "dos": 2, "tres": 3, "cuatro": 4, "cinco": 5,
		"seis": 6, "siete": 7, "ocho": 8, "nueve": 9, "diez": 10,
	}

	criticalKeywords = []string{"masacre", "emboscada", "ejecutad", "fosa", "narcobloqueo"}
	highKeywords     = []string{"secuestr", "balacera", "enfrentamiento", "tiroteo", "asalto armado", "levanton"}
	mediumKeywords   = []string{"robo", "roban", "asalto", "atraco", "bloqueo", "bloquean", "hurto", "huachicol"}
)

const (
	baseConfidence   = 0.5
	signalConfidence = 0.15
	maxConfidence    = 0.95
)

// Classifier derives severity, arms, victims and confidence from Spanish
// incident text
type Classifier struct{}

// New creates a new classifier instance
func New() *Classifier {
	return &Classifier{}
}

// Classify fills the derived fields of inc from its title and summary. An
// existing classification confidence is preserved.
func (c *Classifier) Classify(inc *models.Incident) {
	text := utils.Fold(inc.Title + " " + inc.Summary)

	inc.ArmsMentioned = armsPattern.MatchString(text)
	inc.Victims = CountVictims(text)
	inc.IncidentType = utils.InferIncidentType(text)
	inc.Severity = c.classifySeverity(text, inc.ArmsMentioned, inc.Victims)

	if inc.ClassificationConfidence == 0 {
		inc.ClassificationConfidence = c.confidence(text, inc)
	}
}

func (c *Classifier) classifySeverity(text string, arms bool, victims int) models.Severity {
	switch {
	case utils.ContainsAny(text, criticalKeywords) || victims >= 3 || (arms && victims > 0):
		return models.SeverityCritical
	case utils.ContainsAny(text, highKeywords) || arms || victims > 0:
		return models.SeverityHigh
	case utils.ContainsAny(text, mediumKeywords):
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

// confidence grows with the number of independent signals found in the text
func (c *Classifier) confidence(text string, inc *models.Incident) float64 {
	signals := 0
	if utils.ContainsAny(text, criticalKeywords) || utils.ContainsAny(text, highKeywords) ||
		utils.ContainsAny(text, mediumKeywords) {
		signals++
	}
	if inc.IncidentType != "general" {
		signals++
	}
	if inc.ArmsMentioned {
		signals++
	}
	if inc.Victims > 0 {
		signals++
	}
	return min(baseConfidence+float64(signals)*signalConfidence, maxConfidence)
}

// CountVictims sums every "<n> muertos/heridos/..." mention in folded text
func CountVictims(text string) int {
	total := 0
	for _, m := range victimsPattern.FindAllStringSubmatch(text, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil {
			total += n
			continue
		}
		total += numberWords[m[1]]
	}
	return total
}
