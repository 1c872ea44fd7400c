package entities

import (
	"sort"
	"strconv"
	"strings"

	"github.com/volatiletech/null/v8"
)

const (
	// FreePlaceholder is replaced with the current free-key count
	FreePlaceholder        = "{free}"
	DefaultMessageTemplate = "Only {free} free keys left"
)

// DefaultThresholds are used when no notification config has been persisted
var DefaultThresholds = []int{20, 10}

// NotificationConfig controls when and what the low-stock notifier sends
type NotificationConfig struct {
	Thresholds      []int  `json:"thresholds"`
	MessageTemplate string `json:"messageTemplate"`
}

// DefaultNotificationConfig returns a fresh copy of the default config
func DefaultNotificationConfig() NotificationConfig {
	return NotificationConfig{
		Thresholds:      append([]int(nil), DefaultThresholds...),
		MessageTemplate: DefaultMessageTemplate,
	}
}

// WithDefaults fills empty fields from the default config
func (c NotificationConfig) WithDefaults() NotificationConfig {
	if len(c.Thresholds) == 0 {
		c.Thresholds = append([]int(nil), DefaultThresholds...)
	}
	if strings.TrimSpace(c.MessageTemplate) == "" {
		c.MessageTemplate = DefaultMessageTemplate
	}
	return c
}

// Render substitutes the free count into the message template
func (c NotificationConfig) Render(free int) string {
	return strings.ReplaceAll(c.MessageTemplate, FreePlaceholder, strconv.Itoa(free))
}

// NormalizeThresholds de-duplicates and sorts thresholds descending
func NormalizeThresholds(in []int) []int {
	seen := make(map[int]struct{}, len(in))
	out := make([]int, 0, len(in))
	for _, t := range in {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	return out
}

// NotificationState is the persisted low-stock watermark.
// A null LastWarned means no warning is active.
type NotificationState struct {
	LastWarned null.Int `json:"lastWarned"`
}

// Warning reports whether a warning is currently active
func (s NotificationState) Warning() bool {
	return s.LastWarned.Valid
}

// Below reports whether threshold is more severe than the current watermark
func (s NotificationState) Below(threshold int) bool {
	return !s.LastWarned.Valid || threshold < s.LastWarned.Int
}
