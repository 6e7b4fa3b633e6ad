package landform

import (
	"fmt"
	"sort"
)

// ClassCode identifies a landform class in the Schema D taxonomy.
type ClassCode string

// Schema D landform classes.
const (
	ClassWaterBody       ClassCode = "WATER BODY"
	ClassSmoothSnow      ClassCode = "SMOOTH SNOW/ICEFIELD"
	ClassCrevassedIce    ClassCode = "CREVASSE-RICH ICE"
	ClassRidge           ClassCode = "RIDGE"
	ClassFan             ClassCode = "FAN"
	ClassSedimentarySlop ClassCode = "SEDIMENTARY SLOPE UNIT"
	ClassNonSteepBSU     ClassCode = "NON-STEEP BSU"
	ClassSteepBSU        ClassCode = "STEEP BSU"
	ClassIncisedChannel  ClassCode = "INCISED CHANNEL"
	ClassValleyBottom    ClassCode = "VALLEY BOTTOM"
)

// SchemaD returns the full Schema D taxonomy in its canonical report order.
func SchemaD() []ClassCode {
	return []ClassCode{
		ClassWaterBody,
		ClassSmoothSnow,
		ClassCrevassedIce,
		ClassRidge,
		ClassFan,
		ClassSedimentarySlop,
		ClassNonSteepBSU,
		ClassSteepBSU,
		ClassIncisedChannel,
		ClassValleyBottom,
	}
}

// classAbbrevs maps full class names to the short labels used on chart axes.
var classAbbrevs = map[ClassCode]string{
	ClassWaterBody:       "WB",
	ClassSmoothSnow:      "SI-S",
	ClassCrevassedIce:    "SI-C",
	ClassRidge:           "R",
	ClassFan:             "F",
	ClassSedimentarySlop: "SSU",
	ClassNonSteepBSU:     "BSU-NS",
	ClassSteepBSU:        "BSU-S",
	ClassIncisedChannel:  "IC",
	ClassValleyBottom:    "VB",
}

// Abbrev returns a short axis label for a class. Classes outside Schema D
// fall back to the full name.
func (c ClassCode) Abbrev() string {
	if a, ok := classAbbrevs[c]; ok {
		return a
	}
	return string(c)
}

// ClassifierID identifies one of the base classifiers or the ensemble itself.
type ClassifierID string

// Base classifiers plus the synthetic ensemble identifier.
const (
	ClassifierRTD50  ClassifierID = "RT_D50"
	ClassifierRTD60  ClassifierID = "RT_D60"
	ClassifierSVMD50 ClassifierID = "SVM_D50"
	ClassifierSVMD60 ClassifierID = "SVM_D60"
	ClassifierE5     ClassifierID = "E5"
)

// BaseClassifiers returns the four voting classifiers in default priority
// order. The ensemble identifier is deliberately excluded: E5 is assessed
// like any classifier but never votes.
func BaseClassifiers() []ClassifierID {
	return []ClassifierID{ClassifierRTD50, ClassifierRTD60, ClassifierSVMD50, ClassifierSVMD60}
}

// DefaultPriority is the tie-break precedence used when no explicit order is
// configured.
func DefaultPriority() []ClassifierID {
	return BaseClassifiers()
}

// ParseClassifierID validates a classifier tag from configuration or CLI
// input. Unknown tags are a configuration error and must stop the run before
// any computation starts.
func ParseClassifierID(s string) (ClassifierID, error) {
	switch ClassifierID(s) {
	case ClassifierRTD50, ClassifierRTD60, ClassifierSVMD50, ClassifierSVMD60, ClassifierE5:
		return ClassifierID(s), nil
	}
	return "", fmt.Errorf("unknown classifier %q (want one of %v or %s)", s, BaseClassifiers(), ClassifierE5)
}

// ValidateClasses checks that every configured class code belongs to the
// known taxonomy. An empty known set accepts anything (the class enumeration
// then defaults to whatever the reference data contains).
func ValidateClasses(configured, known []ClassCode) error {
	if len(known) == 0 {
		return nil
	}
	set := make(map[ClassCode]bool, len(known))
	for _, c := range known {
		set[c] = true
	}
	for _, c := range configured {
		if !set[c] {
			return fmt.Errorf("unknown class code %q", c)
		}
	}
	return nil
}

// SortClasses orders class codes by Schema D position, with codes outside the
// taxonomy appended alphabetically. Keyed lookups everywhere else mean this
// order only affects report output.
func SortClasses(classes []ClassCode) {
	rank := make(map[ClassCode]int, len(classAbbrevs))
	for i, c := range SchemaD() {
		rank[c] = i
	}
	sort.Slice(classes, func(i, j int) bool {
		ri, iOK := rank[classes[i]]
		rj, jOK := rank[classes[j]]
		switch {
		case iOK && jOK:
			return ri < rj
		case iOK:
			return true
		case jOK:
			return false
		default:
			return classes[i] < classes[j]
		}
	})
}
