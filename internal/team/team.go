// Package team aggregates the referral downline of team leaders.
package team

import (
	"context"
	"sort"

	"gorm.io/gorm"

	"vcoin/internal/domain"
)

// Policy decides how nested team leaders are treated in a downline walk
type Policy int

const (
	// ExcludeNestedLeaders counts a nested leader but does not descend below it
	ExcludeNestedLeaders Policy = iota
	// IncludeNestedLeaders folds nested leaders' downlines into the parent team
	IncludeNestedLeaders
)

// ParsePolicy maps the configured name to a Policy; unknown names exclude
func ParsePolicy(name string) Policy {
	if name == "include" {
		return IncludeNestedLeaders
	}
	return ExcludeNestedLeaders
}

// Stats summarises a team
type Stats struct {
	TotalMembers       int   `json:"total_members"`
	DirectMembers      int   `json:"direct_members"`
	IndirectMembers    int   `json:"indirect_members"`
	TotalSecurityCoins int64 `json:"total_security_coins"`
	TotalDividendCoins int64 `json:"total_dividend_coins"`
	TotalSales         int64 `json:"total_sales"`
}

// Member is a direct referral with its own direct referrals
type Member struct {
	domain.User
	Referrals []domain.User `json:"referrals"`
}

func byReferrer(users []domain.User) map[string][]domain.User {
	children := make(map[string][]domain.User)
	for _, u := range users {
		if code := u.Referrer(); code != "" {
			children[code] = append(children[code], u)
		}
	}
	return children
}

// Downline walks the referral graph breadth first from root. The root itself
// is not part of the result and each member appears once even when the
// stored links form a cycle.
func Downline(root string, users []domain.User, policy Policy) []domain.User {
	children := byReferrer(users)
	visited := map[string]bool{root: true}
	var out []domain.User
	queue := []string{root}
	for len(queue) > 0 {
		code := queue[0]
		queue = queue[1:]
		for _, u := range children[code] {
			if visited[u.ReferralCode] {
				continue
			}
			visited[u.ReferralCode] = true
			out = append(out, u)
			if u.Role == domain.RoleTeamLeader && policy == ExcludeNestedLeaders {
				continue
			}
			queue = append(queue, u.ReferralCode)
		}
	}
	return out
}

// Compute builds the team statistics of root. Sales are dividend coins times unitPrice.
func Compute(root string, users []domain.User, policy Policy, unitPrice int64) Stats {
	var s Stats
	for _, u := range Downline(root, users, policy) {
		if u.Referrer() == root {
			s.DirectMembers++
		} else {
			s.IndirectMembers++
		}
		s.TotalSecurityCoins += u.SecurityCoins
		s.TotalDividendCoins += u.DividendCoins
	}
	s.TotalMembers = s.DirectMembers + s.IndirectMembers
	s.TotalSales = s.TotalDividendCoins * unitPrice
	return s
}

// Referrals lists root's direct referrals, each with its own direct referrals, newest first
func Referrals(root string, users []domain.User) []Member {
	children := byReferrer(users)
	direct := newestFirst(children[root])
	out := make([]Member, 0, len(direct))
	for _, u := range direct {
		var sub []domain.User
		if u.ReferralCode != root {
			sub = newestFirst(children[u.ReferralCode])
		}
		if sub == nil {
			sub = []domain.User{}
		}
		out = append(out, Member{User: u, Referrals: sub})
	}
	return out
}

func newestFirst(users []domain.User) []domain.User {
	if len(users) == 0 {
		return nil
	}
	sorted := append([]domain.User(nil), users...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].ID > sorted[j].ID
		}
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})
	return sorted
}

// Service loads users from the database for team queries
type Service struct {
	db        *gorm.DB
	policy    Policy
	unitPrice int64
}

// NewService creates a team service
func NewService(db *gorm.DB, policy Policy, unitPrice int64) *Service {
	return &Service{db: db, policy: policy, unitPrice: unitPrice}
}

func (s *Service) load(ctx context.Context) ([]domain.User, error) {
	var users []domain.User
	err := s.db.WithContext(ctx).
		Select("id", "name", "phone", "email", "referral_code", "referrer_code", "security_coins",
			"dividend_coins", "member_number", "role", "status", "created_at", "updated_at").
		Find(&users).Error
	return users, err
}

// Stats returns the team statistics of the leader with the given referral code
func (s *Service) Stats(ctx context.Context, root string) (Stats, error) {
	users, err := s.load(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Compute(root, users, s.policy, s.unitPrice), nil
}

// Referrals returns the two-level referral listing of a member
func (s *Service) Referrals(ctx context.Context, root string) ([]Member, error) {
	users, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return Referrals(root, users), nil
}
