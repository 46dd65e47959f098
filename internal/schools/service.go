package schools

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/singleflight"

	"github.com/akada-sms/akada/internal/platform/db"
	"github.com/akada-sms/akada/internal/rbac"
	"github.com/akada-sms/akada/internal/shared"
)

var subdomainPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,61}[a-z0-9]$`)

// reserved subdomains that never map to a tenant.
var reservedSubdomains = map[string]struct{}{
	"www":    {},
	"api":    {},
	"admin":  {},
	"static": {},
	"mail":   {},
}

type cachedSubdomain struct {
	schoolID int64
	expires  time.Time
}

// Service implements school onboarding, selection and subdomain resolution.
type Service struct {
	logger *slog.Logger
	repo   *Repository
	rbac   *rbac.Service
	pool   *pgxpool.Pool

	// Subdomain lookups happen on every request, so concurrent cache misses
	// for the same subdomain are collapsed and results kept briefly.
	lookups  singleflight.Group
	mu       sync.Mutex
	cache    map[string]cachedSubdomain
	cacheTTL time.Duration
}

// NewService constructs a Service.
func NewService(logger *slog.Logger, repo *Repository, rbacService *rbac.Service, pool *pgxpool.Pool) *Service {
	return &Service{
		logger:   logger,
		repo:     repo,
		rbac:     rbacService,
		pool:     pool,
		cache:    make(map[string]cachedSubdomain),
		cacheTTL: 30 * time.Second,
	}
}

// GetSchool fetches a school by ID.
func (s *Service) GetSchool(ctx context.Context, id int64) (School, error) {
	return s.repo.GetSchool(ctx, id)
}

// IsActiveSchool satisfies the directory interface used during school
// resolution.
func (s *Service) IsActiveSchool(ctx context.Context, schoolID int64) (bool, error) {
	return s.repo.IsActiveSchool(ctx, schoolID)
}

// SchoolsForUser lists the schools a user can switch into.
func (s *Service) SchoolsForUser(ctx context.Context, userID int64) ([]SchoolOption, error) {
	return s.repo.ListForUser(ctx, userID)
}

// UpdateProfile updates a school's contact details.
func (s *Service) UpdateProfile(ctx context.Context, school School) error {
	if strings.TrimSpace(school.Name) == "" {
		return errors.New("schools: name is required")
	}
	return s.repo.UpdateSchool(ctx, school)
}

// Onboard creates a new school, seeds its system roles and makes the
// onboarding user its principal.
func (s *Service) Onboard(ctx context.Context, school School, ownerUserID int64) (int64, error) {
	school.Subdomain = strings.ToLower(strings.TrimSpace(school.Subdomain))
	if strings.TrimSpace(school.Name) == "" {
		return 0, errors.New("schools: name is required")
	}
	if !subdomainPattern.MatchString(school.Subdomain) {
		return 0, errors.New("schools: invalid subdomain")
	}
	if _, reserved := reservedSubdomains[school.Subdomain]; reserved {
		return 0, errors.New("schools: subdomain is reserved")
	}

	// The school row, its system roles and the owner's principal membership
	// commit together; a failure leaves nothing half-onboarded behind.
	var schoolID int64
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		id, err := s.repo.CreateSchool(ctx, tx, school)
		if err != nil {
			return err
		}
		schoolID = id
		return s.rbac.SeedSchool(ctx, tx, id, ownerUserID)
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("school onboarded",
		slog.Int64("school_id", schoolID),
		slog.String("subdomain", school.Subdomain),
		slog.Int64("owner_user_id", ownerUserID))
	return schoolID, nil
}

// SchoolIDForSubdomain resolves a subdomain to an active school ID. Zero
// means the subdomain maps to no tenant, which is not an error.
func (s *Service) SchoolIDForSubdomain(ctx context.Context, subdomain string) (int64, error) {
	subdomain = strings.ToLower(subdomain)
	if subdomain == "" {
		return 0, nil
	}
	if _, reserved := reservedSubdomains[subdomain]; reserved {
		return 0, nil
	}

	s.mu.Lock()
	if entry, ok := s.cache[subdomain]; ok && time.Now().Before(entry.expires) {
		s.mu.Unlock()
		return entry.schoolID, nil
	}
	s.mu.Unlock()

	value, err, _ := s.lookups.Do(subdomain, func() (any, error) {
		school, err := s.repo.FindBySubdomain(ctx, subdomain)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return int64(0), nil
			}
			return int64(0), err
		}
		if !school.IsActive {
			return int64(0), nil
		}
		return school.ID, nil
	})
	if err != nil {
		return 0, err
	}

	id := value.(int64)
	s.mu.Lock()
	s.cache[subdomain] = cachedSubdomain{schoolID: id, expires: time.Now().Add(s.cacheTTL)}
	s.mu.Unlock()
	return id, nil
}
