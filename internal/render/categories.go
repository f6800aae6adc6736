package render

import "ledger/internal/core"

// DefaultIcon is shown for categories without a dedicated icon.
const DefaultIcon = "tag"

var categoryLabels = map[string]string{
	core.CategorySalary:        "Salary",
	core.CategoryBusiness:      "Business",
	core.CategoryInvestment:    "Investment",
	core.CategoryFood:          "Food & Dining",
	core.CategoryShopping:      "Shopping",
	core.CategoryTransport:     "Transportation",
	core.CategoryEntertainment: "Entertainment",
	core.CategoryBills:         "Bills & Utilities",
	core.CategoryEMI:           "EMI",
	core.CategoryOther:         "Other",
}

// Font Awesome icon names, without the "fa-" prefix.
var categoryIcons = map[string]string{
	core.CategorySalary:        "money-check",
	core.CategoryBusiness:      "briefcase",
	core.CategoryInvestment:    "chart-line",
	core.CategoryFood:          "utensils",
	core.CategoryShopping:      "shopping-cart",
	core.CategoryTransport:     "car",
	core.CategoryEntertainment: "film",
	core.CategoryBills:         "lightbulb",
	core.CategoryEMI:           "home",
	core.CategoryOther:         "tag",
}

// CategoryLabel returns the display name; unknown keys are shown verbatim.
func CategoryLabel(key string) string {
	if label, ok := categoryLabels[key]; ok {
		return label
	}
	return key
}

// CategoryIcon returns the icon name for key, or DefaultIcon.
func CategoryIcon(key string) string {
	if icon, ok := categoryIcons[key]; ok {
		return icon
	}
	return DefaultIcon
}

// CategoryOption is one entry of the category picker.
type CategoryOption struct {
	Key   string
	Label string
	Icon  string
}

// CategoryOptions lists the known categories in picker order.
func CategoryOptions() []CategoryOption {
	keys := core.Categories()
	opts := make([]CategoryOption, len(keys))
	for i, k := range keys {
		opts[i] = CategoryOption{Key: k, Label: CategoryLabel(k), Icon: CategoryIcon(k)}
	}
	return opts
}
