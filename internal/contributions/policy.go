package contributions

import (
	"fmt"
	"strings"
)

// AutoPublishRule is one (target, type) pair that skips review.
type AutoPublishRule struct {
	TargetType       TargetType
	ContributionType ContributionType
}

// ParseAutoPublishRule parses "target:type", e.g. "competitors:intel".
func ParseAutoPublishRule(raw string) (AutoPublishRule, error) {
	target, kind, found := strings.Cut(strings.TrimSpace(raw), ":")
	if !found {
		return AutoPublishRule{}, fmt.Errorf("auto-publish rule %q must be target:type", raw)
	}
	targetType, err := ParseTargetType(target)
	if err != nil {
		return AutoPublishRule{}, err
	}
	contributionType, err := ParseContributionType(kind)
	if err != nil {
		return AutoPublishRule{}, err
	}
	return AutoPublishRule{TargetType: targetType, ContributionType: contributionType}, nil
}

// AutoPublishPolicy decides at creation time whether a contribution bypasses review.
type AutoPublishPolicy struct {
	rules map[AutoPublishRule]struct{}
}

// NewAutoPublishPolicy builds a policy from the given rules.
func NewAutoPublishPolicy(rules ...AutoPublishRule) AutoPublishPolicy {
	policy := AutoPublishPolicy{rules: make(map[AutoPublishRule]struct{}, len(rules))}
	for _, rule := range rules {
		policy.rules[rule] = struct{}{}
	}
	return policy
}

// AutoPublishes reports whether the pair is published without review.
func (policy AutoPublishPolicy) AutoPublishes(targetType TargetType, contributionType ContributionType) bool {
	_, ok := policy.rules[AutoPublishRule{TargetType: targetType, ContributionType: contributionType}]
	return ok
}
