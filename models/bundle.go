package models

type Bundle struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	Amount   int64  `json:"amount"` // minor units
	Currency string `json:"currency"`
}

// AddonAmount is the surcharge for the AI prompt pack add-on, in minor units.
const AddonAmount int64 = 500

// AddonPrefix is the fixed storage prefix holding add-on content.
const AddonPrefix = "ai-prompts"

var bundles = map[string]Bundle{
	"kids-curriculum": {Type: "kids-curriculum", Name: "Kids Curriculum", Amount: 900, Currency: "usd"},
	"video-bundle":    {Type: "video-bundle", Name: "Video Bundle", Amount: 1200, Currency: "usd"},
	"animation-video": {Type: "animation-video", Name: "Animation Video", Amount: 700, Currency: "usd"},
	"bma-bundle":      {Type: "bma-bundle", Name: "Bright Minds Academy Bundle", Amount: 1900, Currency: "usd"},
}

func BundleByType(bundleType string) (Bundle, bool) {
	b, ok := bundles[bundleType]
	return b, ok
}

// CheckoutAmount returns the charge for a bundle, including the add-on
// surcharge when selected.
func CheckoutAmount(b Bundle, includesAddon bool) int64 {
	if includesAddon {
		return b.Amount + AddonAmount
	}
	return b.Amount
}
