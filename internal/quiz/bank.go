package quiz

// Question is one multiple-choice item with its answer key.
type Question struct {
	ID           string
	Prompt       string
	Options      []string
	CorrectIndex int
	Explanation  string
}

// PublicQuestion is a Question without its answer key.
type PublicQuestion struct {
	ID      string
	Prompt  string
	Options []string
}

// Bank is an ordered, fixed set of questions.
type Bank []Question

// PublicQuestions strips answer keys and explanations.
func (bank Bank) PublicQuestions() []PublicQuestion {
	questions := make([]PublicQuestion, 0, len(bank))
	for _, question := range bank {
		questions = append(questions, PublicQuestion{
			ID:      question.ID,
			Prompt:  question.Prompt,
			Options: append([]string(nil), question.Options...),
		})
	}
	return questions
}

// DefaultBank returns the GTM certification questions.
func DefaultBank() Bank {
	return Bank{
		{
			ID:           "icp-definition",
			Prompt:       "What does our ideal customer profile describe?",
			Options:      []string{"Every company that could buy", "The accounts most likely to buy, succeed and expand", "Only current customers", "Companies our competitors target"},
			CorrectIndex: 1,
			Explanation:  "The ICP narrows focus to accounts with the highest fit, success and expansion potential.",
		},
		{
			ID:           "value-proposition",
			Prompt:       "A strong value proposition leads with...",
			Options:      []string{"The feature list", "Our funding history", "The customer outcome we deliver", "A competitor comparison"},
			CorrectIndex: 2,
			Explanation:  "Buyers care about outcomes first; features are proof, not the headline.",
		},
		{
			ID:           "messaging-pillars",
			Prompt:       "What is the role of a messaging pillar?",
			Options:      []string{"A supporting theme backed by proof points", "A pricing tier", "A slide template", "A sales quota"},
			CorrectIndex: 0,
			Explanation:  "Each pillar is a theme that supports the positioning and carries its own proof points.",
		},
		{
			ID:           "battlecard-landmines",
			Prompt:       "On a battlecard, a landmine is...",
			Options:      []string{"A bug in the competitor product", "A question that exposes a competitor weakness", "A discount we can offer", "A risk in our own roadmap"},
			CorrectIndex: 1,
			Explanation:  "Landmines are discovery questions that surface gaps in the competitor's offering.",
		},
		{
			ID:           "objection-handling",
			Prompt:       "When a prospect raises a price objection, the first step is to...",
			Options:      []string{"Offer a discount immediately", "Escalate to the CEO", "Understand what value they are comparing against", "End the call"},
			CorrectIndex: 2,
			Explanation:  "Price objections are value objections until proven otherwise.",
		},
		{
			ID:           "contribution-review",
			Prompt:       "What happens when an admin approves a contribution to the positioning document?",
			Options:      []string{"Nothing until the next release", "A new document version is created and cites the contribution", "The previous version is overwritten", "The contribution is emailed to marketing"},
			CorrectIndex: 1,
			Explanation:  "Approval appends a version carrying the insight and records a citation back to it.",
		},
		{
			ID:           "anonymous-contributions",
			Prompt:       "Who can see the author of an anonymous contribution on a published document?",
			Options:      []string{"Admins only", "Everyone", "Nobody; the name is never shown", "The competitor team"},
			CorrectIndex: 2,
			Explanation:  "Anonymous contributions always render without a contributor name.",
		},
		{
			ID:           "version-restore",
			Prompt:       "Restoring an older version of a document...",
			Options:      []string{"Deletes newer versions", "Creates a new version with the old content", "Edits the old version in place", "Is not possible"},
			CorrectIndex: 1,
			Explanation:  "History is append-only; a restore copies old data into the next version number.",
		},
		{
			ID:           "differentiators",
			Prompt:       "A good differentiator is...",
			Options:      []string{"Something every vendor claims", "Unique, provable and important to the buyer", "An internal process improvement", "A long-term roadmap item"},
			CorrectIndex: 1,
			Explanation:  "Differentiators must matter to the buyer and be something we can prove.",
		},
		{
			ID:           "competitive-intel",
			Prompt:       "Where should fresh competitive intel from a sales call go?",
			Options:      []string{"A private notes file", "A contribution against the competitors battlecard", "A team chat thread only", "Nowhere until quarter end"},
			CorrectIndex: 1,
			Explanation:  "Contributions keep the battlecard current and attribute the insight.",
		},
	}
}
