package classification

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/AzielCF/az-fbm/customers/domain"
)

// Provider is an LLM backend able to pick a tier for a customer given
// a short description of their recent conversation.
type Provider interface {
	ClassifyTier(ctx context.Context, description string, tiers []string) (string, error)
}

// KeywordRule maps trigger words to a tier. Rules run before the LLM:
// an explicit signal ("refund", "buy") needs no model call.
type KeywordRule struct {
	Tier     domain.Tier
	Keywords []string
}

// DefaultRules cover the common purchase-intent and churn signals.
func DefaultRules() []KeywordRule {
	return []KeywordRule{
		{Tier: domain.TierAtRisk, Keywords: []string{"cancel", "refund", "complaint", "disappointed", "unsubscribe", "queja", "reembolso", "cancelar"}},
		{Tier: domain.TierEngaged, Keywords: []string{"buy", "price", "order", "interested", "purchase", "comprar", "precio", "pedido", "cuanto"}},
	}
}

// Engine assigns tiers with a hybrid strategy: keyword rules first,
// LLM fallback when a provider is configured, recency tiering last.
type Engine struct {
	customers domain.ICustomerRepository
	provider  Provider
	rules     []KeywordRule
	nowFn     func() time.Time
}

func NewEngine(customers domain.ICustomerRepository, provider Provider, rules []KeywordRule) *Engine {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Engine{
		customers: customers,
		provider:  provider,
		rules:     rules,
		nowFn:     func() time.Time { return time.Now().UTC() },
	}
}

// SetNowFunc overrides the clock, for tests.
func (e *Engine) SetNowFunc(fn func() time.Time) {
	e.nowFn = fn
}

// Classify picks a tier for one customer. recentText is the customer's
// latest inbound messages concatenated; it may be empty.
func (e *Engine) Classify(ctx context.Context, customer *domain.Customer, recentText string) (domain.Tier, error) {
	if tier, ok := e.matchKeywords(recentText); ok {
		return tier, nil
	}

	if e.provider != nil && strings.TrimSpace(recentText) != "" {
		tier, err := e.classifyWithProvider(ctx, customer, recentText)
		if err != nil {
			logrus.WithError(err).Warnf("[CLASSIFY] LLM classification failed for %s, falling back to recency", customer.PSID)
		} else if tier != "" {
			return tier, nil
		}
	}

	return e.recencyTier(customer), nil
}

// ClassifyPage runs a batch pass over every customer of a page and
// persists the resulting tiers. recentTexts maps PSID to conversation
// text; missing entries classify on recency alone.
func (e *Engine) ClassifyPage(ctx context.Context, pageID string, recentTexts map[string]string) (int, error) {
	customers, err := e.customers.ListByPage(ctx, pageID)
	if err != nil {
		return 0, err
	}

	updated := 0
	for i := range customers {
		customer := customers[i]
		tier, err := e.Classify(ctx, &customer, recentTexts[customer.PSID])
		if err != nil {
			logrus.WithError(err).Warnf("[CLASSIFY] Skipping customer %s", customer.PSID)
			continue
		}
		if tier == customer.CurrentTier {
			continue
		}
		if err := e.customers.UpdateTier(ctx, pageID, customer.PSID, tier); err != nil {
			logrus.WithError(err).Warnf("[CLASSIFY] Failed to persist tier for %s", customer.PSID)
			continue
		}
		updated++
	}

	logrus.Infof("[CLASSIFY] Page %s: %d/%d customers re-tiered", pageID, updated, len(customers))
	return updated, nil
}

func (e *Engine) matchKeywords(text string) (domain.Tier, bool) {
	lowered := strings.ToLower(text)
	if strings.TrimSpace(lowered) == "" {
		return "", false
	}
	for _, rule := range e.rules {
		for _, keyword := range rule.Keywords {
			if strings.Contains(lowered, keyword) {
				return rule.Tier, true
			}
		}
	}
	return "", false
}

func (e *Engine) classifyWithProvider(ctx context.Context, customer *domain.Customer, recentText string) (domain.Tier, error) {
	tiers := make([]string, 0, len(domain.AllTiers()))
	for _, t := range domain.AllTiers() {
		tiers = append(tiers, string(t))
	}

	var b strings.Builder
	b.WriteString("Recent customer messages:\n")
	b.WriteString(recentText)
	if customer.LastContactAt != nil {
		days := int(e.nowFn().Sub(customer.LastContactAt.UTC()).Hours() / 24)
		b.WriteString("\nDays since last contact: ")
		b.WriteString(strconv.Itoa(days))
	}

	raw, err := e.provider.ClassifyTier(ctx, b.String(), tiers)
	if err != nil {
		return "", err
	}
	tier := domain.Tier(strings.ToLower(strings.TrimSpace(raw)))
	if !domain.ValidTier(tier) {
		logrus.Warnf("[CLASSIFY] Provider returned unknown tier %q, ignoring", raw)
		return "", nil
	}
	return tier, nil
}

// recencyTier is the deterministic fallback keyed on days since the
// customer last wrote.
func (e *Engine) recencyTier(customer *domain.Customer) domain.Tier {
	if customer.LastContactAt == nil {
		return domain.TierNew
	}
	elapsed := e.nowFn().Sub(customer.LastContactAt.UTC())
	switch {
	case elapsed <= 7*24*time.Hour:
		return domain.TierEngaged
	case elapsed <= 30*24*time.Hour:
		return domain.TierAtRisk
	default:
		return domain.TierDormant
	}
}
