package models

// TierRewardKind tags the reward variant a tier carries. Dispatch over these is
// an exhaustive switch in the tier evaluator — an unknown kind is logged, never
// silently dropped.
type TierRewardKind string

const (
	TierRewardBadge        TierRewardKind = "badge"
	TierRewardProExtension TierRewardKind = "pro_extension"
	TierRewardSpreadUnlock TierRewardKind = "spread_unlock"
	TierRewardTitle        TierRewardKind = "title"
)

// TierReward is the tagged variant: exactly one kind per tier. ProDays is only
// meaningful for TierRewardProExtension; SpreadKey only for TierRewardSpreadUnlock.
// CompanionBadge, when set, grants an extra badge milestone alongside the main reward.
type TierReward struct {
	Kind           TierRewardKind `json:"kind"`
	ProDays        int            `json:"pro_days,omitempty"`
	SpreadKey      string         `json:"spread_key,omitempty"`
	CompanionBadge string         `json:"companion_badge,omitempty"`
}

// Tier is a milestone definition: crossing Threshold lifetime activated
// referrals unlocks the reward exactly once.
type Tier struct {
	Threshold   int64      `json:"threshold"`
	Label       string     `json:"label"`
	Description string     `json:"description"`
	Reward      TierReward `json:"reward"`
}

// DefaultTiers is the fixed tier table, thresholds strictly ascending.
// Injected into the TierEvaluator so tests can swap in alternative tables.
var DefaultTiers = []Tier{
	{
		Threshold:   1,
		Label:       "Cosmic Seed",
		Description: "Your first invite bloomed into an active stargazer",
		Reward:      TierReward{Kind: TierRewardBadge},
	},
	{
		Threshold:   3,
		Label:       "Star Weaver",
		Description: "Three friends now chart their skies with Lunary",
		Reward:      TierReward{Kind: TierRewardProExtension, ProDays: 7},
	},
	{
		Threshold:   5,
		Label:       "Constellation Weaver",
		Description: "Unlocks the exclusive Celestial Circle tarot spread",
		Reward: TierReward{
			Kind:           TierRewardSpreadUnlock,
			SpreadKey:      "celestial-circle",
			CompanionBadge: "Circle Keeper",
		},
	},
	{
		Threshold:   10,
		Label:       "Moon Guide",
		Description: "Ten activated invites — a full circle of seekers",
		Reward:      TierReward{Kind: TierRewardProExtension, ProDays: 30},
	},
	{
		Threshold:   25,
		Label:       "Astral Ambassador",
		Description: "A title worn beside your name across the community",
		Reward:      TierReward{Kind: TierRewardTitle},
	},
	{
		Threshold:   50,
		Label:       "Starlight Sage",
		Description: "Fifty kindred spirits brought under the same sky",
		Reward:      TierReward{Kind: TierRewardProExtension, ProDays: 90},
	},
	{
		Threshold:   100,
		Label:       "Cosmic Architect",
		Description: "One hundred activations — the constellation is yours",
		Reward:      TierReward{Kind: TierRewardProExtension, ProDays: 180},
	},
}
