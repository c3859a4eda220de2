package models

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// RankCategory groups ranks into officers, NCOs and enlisted personnel.
type RankCategory string

const (
	CategoryOfficer  RankCategory = "officer"
	CategoryNCO      RankCategory = "nco"
	CategoryEnlisted RankCategory = "enlisted"
	CategoryOther    RankCategory = "other"
)

type rankInfo struct {
	seniority int
	category  RankCategory
}

// ranks lists Army ranks from most to least senior. Keys are normalized
// abbreviations and spelled-out forms.
var ranks = map[string]rankInfo{}

func init() {
	table := []struct {
		aliases  []string
		category RankCategory
	}{
		{[]string{"gen ex", "general de exercito"}, CategoryOfficer},
		{[]string{"gen div", "general de divisao"}, CategoryOfficer},
		{[]string{"gen bda", "general de brigada"}, CategoryOfficer},
		{[]string{"cel", "coronel"}, CategoryOfficer},
		{[]string{"ten cel", "tenente coronel", "tenente-coronel"}, CategoryOfficer},
		{[]string{"maj", "major"}, CategoryOfficer},
		{[]string{"cap", "capitao"}, CategoryOfficer},
		{[]string{"1 ten", "1o ten", "primeiro tenente", "1º ten"}, CategoryOfficer},
		{[]string{"2 ten", "2o ten", "segundo tenente", "2º ten"}, CategoryOfficer},
		{[]string{"asp", "asp of", "aspirante", "aspirante a oficial"}, CategoryOfficer},
		{[]string{"s ten", "st", "subtenente"}, CategoryNCO},
		{[]string{"1 sgt", "1o sgt", "primeiro sargento", "1º sgt"}, CategoryNCO},
		{[]string{"2 sgt", "2o sgt", "segundo sargento", "2º sgt"}, CategoryNCO},
		{[]string{"3 sgt", "3o sgt", "terceiro sargento", "3º sgt"}, CategoryNCO},
		{[]string{"cb", "cabo"}, CategoryEnlisted},
		{[]string{"sd", "soldado"}, CategoryEnlisted},
	}
	for i, row := range table {
		for _, alias := range row.aliases {
			ranks[normalizeRank(alias)] = rankInfo{seniority: i, category: row.category}
		}
	}
}

// RankSeniority orders ranks: lower is more senior. Unknown ranks sort after
// every known one.
func RankSeniority(rank string) int {
	if info, ok := ranks[normalizeRank(rank)]; ok {
		return info.seniority
	}
	return len(ranks) + 1
}

// CategoryOf classifies rank, returning CategoryOther when unknown.
func CategoryOf(rank string) RankCategory {
	if info, ok := ranks[normalizeRank(rank)]; ok {
		return info.category
	}
	return CategoryOther
}

func normalizeRank(rank string) string {
	s := strings.ToLower(Fold(rank))
	s = strings.NewReplacer("º", "o", "ª", "a", ".", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// Fold strips diacritics so "Capitão" and "capitao" compare equal after
// lower-casing.
func Fold(s string) string {
	decomposed := norm.NFD.String(s)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if r >= 0x0300 && r <= 0x036f {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
