package service

import (
	"strings"

	"github.com/mih4lev/steam-bot-server/internal/domain/model"
)

// Localized special-variant markers as they appear in listing strings.
const (
	markerStrange    = "StatTrak™"
	markerUnusual    = "★"
	markerTournament = "Сувенирный"
)

// rarityTiers maps localized rarity-tier names to canonical tier tags.
var rarityTiers = []struct {
	marker string
	tier   string
}{
	{"Ширпотреб", "common"},
	{"Промышленное качество", "uncommon"},
	{"Армейское качество", "rare"},
	{"Запрещённое", "mythical"},
	{"Засекреченное", "legendary"},
	{"Тайное", "ancient"},
	{"экстраординарного типа", "extraordinary"},
}

// weaponGroups maps localized weapon-category names to numeric group
// ids. Scanned in ascending group order with later matches winning:
// the SMG name contains the pistol token.
var weaponGroups = []struct {
	group int
	names []string
}{
	{1, []string{"Пистолет"}},
	{2, []string{"Пистолет-пулемёт"}},
	{3, []string{"Винтовка", "Снайперская винтовка"}},
	{4, []string{"Дробовик", "Пулемёт"}},
	{5, []string{"Нож"}},
	{6, []string{"Перчатки"}},
}

const (
	weaponGroupKnife  = 5
	weaponGroupGloves = 6

	// Knives and gloves have no lower rarity tiers, so their rank is
	// pinned to the scale maximum whatever tier string was detected.
	maxRarityRank = 4
)

// rarityRanks maps a subset of tier tags to numeric ranks.
var rarityRanks = map[string]int{
	"rare":      1,
	"mythical":  2,
	"ancient":   3,
	"legendary": 5,
}

// wearScale maps exterior descriptors to the 0-4 numeric wear scale.
// Both the RU strings from the detail source and the EN strings from
// market hash names are accepted.
var wearScale = map[string]int{
	"Прямо с завода":          0,
	"Немного поношенное":      1,
	"После полевых испытаний": 2,
	"Поношенное":              3,
	"Закалённое в боях":       4,
	"Factory New":             0,
	"Minimal Wear":            1,
	"Field-Tested":            2,
	"Well-Worn":               3,
	"Battle-Scarred":          4,
}

// ClassifyItem derives a taxonomy record from a localized display name
// and type descriptor. It is pure and never fails: any field without a
// matching rule stays at its zero value.
func ClassifyItem(displayName, typeDescriptor string) model.Taxonomy {
	// Variant markers show up in the display name for most items and
	// in the type descriptor for a few, so both are scanned.
	t := model.Taxonomy{
		Strange:    containsEither(displayName, typeDescriptor, markerStrange),
		Unusual:    containsEither(displayName, typeDescriptor, markerUnusual),
		Tournament: containsEither(displayName, typeDescriptor, markerTournament),
	}

	for _, r := range rarityTiers {
		if strings.Contains(typeDescriptor, r.marker) {
			t.Rarity = r.tier
			break
		}
	}

	for _, g := range weaponGroups {
		for _, name := range g.names {
			if strings.Contains(typeDescriptor, name) {
				t.WeaponGroup = g.group
			}
		}
	}

	if rank, ok := rarityRanks[t.Rarity]; ok {
		t.RarityNum = rank
	}
	if t.WeaponGroup == weaponGroupKnife || t.WeaponGroup == weaponGroupGloves {
		t.RarityNum = maxRarityRank
	}

	t.Name, t.Skin, t.Exterior = splitDisplayName(displayName)
	if num, ok := wearScale[t.Exterior]; ok {
		n := num
		t.ExteriorNum = &n
	}

	return t
}

func containsEither(a, b, marker string) bool {
	return strings.Contains(a, marker) || strings.Contains(b, marker)
}

// splitDisplayName decomposes "<markers> <base> | <skin> (<exterior>)"
// into its parts. Missing separators leave the affected parts empty.
func splitDisplayName(full string) (name, skin, exterior string) {
	name = full
	if i := strings.Index(full, "| "); i > 1 {
		name = strings.TrimRight(full[:i], " ")
	}
	for _, marker := range []string{markerUnusual, markerStrange, markerTournament} {
		if i := strings.Index(name, marker); i >= 0 {
			name = strings.TrimLeft(name[i+len(marker):], " ")
		}
	}

	if i := strings.Index(full, "| "); i >= 0 {
		rest := full[i+2:]
		if p := strings.Index(rest, "("); p > 0 {
			skin = strings.TrimRight(rest[:p], " ")
		} else {
			skin = rest
		}
	}

	if open := strings.Index(full, "("); open > 0 {
		if end := strings.Index(full[open:], ")"); end > 0 {
			exterior = full[open+1 : open+end]
		}
	}
	return name, skin, exterior
}
