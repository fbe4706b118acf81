package facility

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Vocabulary lists the name phrases and provider tags that identify one
// category. Latin phrases match whole words; Arabic phrases match at the
// start of a word, with or without the definite article, so that plural
// and suffixed forms are covered.
type Vocabulary struct {
	Names []string
	Tags  []string
}

// ClassifierConfig holds the vocabularies used by a Classifier.
type ClassifierConfig struct {
	Blocklist []string
	Pharmacy  Vocabulary
	Clinic    Vocabulary
	Hospital  Vocabulary
	Default   Category
}

// DefaultClassifierConfig returns the English and Arabic vocabularies.
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		Blocklist: []string{
			"water treatment", "wastewater", "treatment plant", "water station",
			"ceramic", "ceramics", "tiles", "factory", "veterinary", "pet shop",
			"محطة مياه", "محطة معالجة", "معالجة مياه", "سيراميك", "مصنع", "بيطري",
		},
		Pharmacy: Vocabulary{
			Names: []string{
				"pharmacy", "pharmacies", "drugstore", "drug store", "chemist", "chemists",
				"صيدلي", "أجزخانة",
			},
			Tags: []string{"pharmacy", "drugstore"},
		},
		Clinic: Vocabulary{
			Names: []string{
				"clinic", "clinics", "polyclinic", "medical center", "medical centre",
				"health center", "health centre", "health unit", "dental", "dentist",
				"doctor", "physiotherapy", "laboratory", "lab",
				"عياد", "مستوصف", "مركز طبي", "مركز صحي", "وحدة صحية", "طبيب", "دكتور", "معمل",
			},
			Tags: []string{"doctor", "dentist", "physiotherapist", "clinic", "medical_lab"},
		},
		Hospital: Vocabulary{
			Names: []string{
				"hospital", "hospitals", "infirmary", "medical city",
				"مستشفى", "مشفى",
			},
			Tags: []string{"hospital"},
		},
		Default: CategoryClinic,
	}
}

// Classifier assigns categories through a fixed decision tree: blocklist,
// then pharmacy, clinic and hospital vocabularies in that order, then the
// default category. It holds no mutable state and is safe for concurrent use.
type Classifier struct {
	blocklist []string
	pharmacy  compiledVocabulary
	clinic    compiledVocabulary
	hospital  compiledVocabulary
	fallback  Category
}

type compiledVocabulary struct {
	latin  []string
	arabic []string
	tags   map[string]struct{}
}

// NewClassifier compiles cfg. Phrases are normalized once up front.
func NewClassifier(cfg ClassifierConfig) *Classifier {
	if !cfg.Default.IsValid() {
		cfg.Default = CategoryClinic
	}
	c := &Classifier{
		pharmacy: compile(cfg.Pharmacy),
		clinic:   compile(cfg.Clinic),
		hospital: compile(cfg.Hospital),
		fallback: cfg.Default,
	}
	for _, phrase := range cfg.Blocklist {
		if n := normalizeText(phrase); n != "" {
			c.blocklist = append(c.blocklist, n)
		}
	}
	return c
}

// NewDefaultClassifier returns a Classifier with DefaultClassifierConfig.
func NewDefaultClassifier() *Classifier {
	return NewClassifier(DefaultClassifierConfig())
}

func compile(v Vocabulary) compiledVocabulary {
	cv := compiledVocabulary{tags: make(map[string]struct{}, len(v.Tags))}
	for _, phrase := range v.Names {
		n := normalizeText(phrase)
		if n == "" {
			continue
		}
		if isLatin(n) {
			cv.latin = append(cv.latin, n)
		} else {
			cv.arabic = append(cv.arabic, n)
		}
	}
	for _, t := range v.Tags {
		cv.tags[normalizeTag(t)] = struct{}{}
	}
	return cv
}

// Classify returns the category for a name and tag set. ok is false when the
// name is blocklisted and the candidate must be discarded.
func (c *Classifier) Classify(name string, tags []string) (Category, bool) {
	padded := " " + normalizeText(name) + " "

	for _, phrase := range c.blocklist {
		if matchPhrase(padded, phrase, !isLatin(phrase)) {
			return "", false
		}
	}

	tagSet := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		tagSet[normalizeTag(t)] = struct{}{}
	}

	switch {
	case c.pharmacy.matches(padded, tagSet):
		return CategoryPharmacy, true
	case c.clinic.matches(padded, tagSet):
		return CategoryClinic, true
	case c.hospital.matches(padded, tagSet):
		return CategoryHospital, true
	}
	return c.fallback, true
}

// Facilities classifies candidates into facilities, dropping blocklisted
// ones. DistanceKm is left for Rank to fill in.
func (c *Classifier) Facilities(candidates []Candidate) []Facility {
	out := make([]Facility, 0, len(candidates))
	for _, cand := range candidates {
		category, ok := c.Classify(cand.Name, cand.Types)
		if !ok {
			continue
		}
		out = append(out, Facility{
			ID:          cand.ProviderID,
			Name:        cand.Name,
			Address:     cand.Address,
			Location:    cand.Location,
			Category:    category,
			Rating:      cand.Rating,
			ReviewCount: cand.ReviewCount,
			OpenNow:     cand.OpenNow,
		})
	}
	return out
}

func (v compiledVocabulary) matches(padded string, tags map[string]struct{}) bool {
	for t := range tags {
		if _, ok := v.tags[t]; ok {
			return true
		}
	}
	for _, phrase := range v.latin {
		if matchPhrase(padded, phrase, false) {
			return true
		}
	}
	for _, phrase := range v.arabic {
		if matchPhrase(padded, phrase, true) {
			return true
		}
	}
	return false
}

const arabicArticle = "ال"

// matchPhrase reports whether phrase occurs in the space-padded text at a
// word start. Latin phrases must also end at a word boundary.
func matchPhrase(padded, phrase string, prefix bool) bool {
	if !prefix {
		return strings.Contains(padded, " "+phrase+" ")
	}
	return strings.Contains(padded, " "+phrase) || strings.Contains(padded, " "+arabicArticle+phrase)
}

var arabicLetterForms = strings.NewReplacer(
	"أ", "ا", "إ", "ا", "آ", "ا", "ٱ", "ا",
	"ة", "ه",
	"ى", "ي",
)

// normalizeText folds case and compatibility forms, unifies Arabic letter
// variants, strips diacritics and collapses everything that is not a letter
// or digit into single spaces.
func normalizeText(s string) string {
	s = norm.NFKC.String(s)
	s = cases.Fold().String(s)
	s = arabicLetterForms.Replace(s)

	var b strings.Builder
	b.Grow(len(s))
	space := true
	for _, r := range s {
		switch {
		case unicode.Is(unicode.Mn, r), r == 'ـ':
			// harakat and tatweel
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			space = false
		default:
			if !space {
				b.WriteByte(' ')
				space = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

func normalizeTag(t string) string {
	return strings.TrimSpace(cases.Fold().String(t))
}

func isLatin(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII {
			return false
		}
	}
	return true
}
