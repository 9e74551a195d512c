package patient

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medlab/lims/internal/domain/numbering"
	"github.com/medlab/lims/internal/platform/db"
)

var ErrNotFound = errors.New("patient not found")

var (
	cnicPattern  = regexp.MustCompile(`^\d{5}-\d{7}-\d$`)
	phonePattern = regexp.MustCompile(`^(\+92|0)?3\d{9}$`)
)

var validSexes = map[string]bool{"M": true, "F": true, "O": true}

type Service struct {
	patients  Repository
	numbering *numbering.Service
	pool      *pgxpool.Pool
	mrnPrefix string
}

func NewService(patients Repository, num *numbering.Service, pool *pgxpool.Pool, mrnPrefix string) *Service {
	return &Service{patients: patients, numbering: num, pool: pool, mrnPrefix: mrnPrefix}
}

// inTx runs fn in a single database transaction when a pool is configured.
func (s *Service) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.pool == nil {
		return fn(ctx)
	}
	return db.WithTx(ctx, s.pool, fn)
}

// Register allocates an MRN and creates the patient record in one
// transaction, so a failed insert rolls back the allocated number.
func (s *Service) Register(ctx context.Context, p *Patient, offline bool, originTerminalCode string) error {
	if err := validatePatient(p); err != nil {
		return err
	}

	return s.inTx(ctx, func(ctx context.Context) error {
		alloc, err := s.numbering.Allocate(ctx, numbering.AllocateRequest{
			Prefix:             s.mrnPrefix,
			Offline:            offline,
			OriginTerminalCode: originTerminalCode,
		})
		if err != nil {
			return err
		}

		p.MRN = alloc.Identifier
		p.IsOfflineEntry = alloc.IsOfflineEntry
		if alloc.Terminal != nil {
			p.OriginTerminalID = &alloc.Terminal.ID
		}
		if alloc.IsOfflineEntry {
			now := time.Now()
			p.SyncedAt = &now
		}

		return numbering.TranslateDuplicate(s.patients.Create(ctx, p))
	})
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

func (s *Service) GetByMRN(ctx context.Context, mrn string) (*Patient, error) {
	return s.patients.GetByMRN(ctx, mrn)
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, p *Patient) error {
	existing, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := validatePatient(p); err != nil {
		return err
	}

	existing.FullName = p.FullName
	existing.FatherName = p.FatherName
	existing.DOB = p.DOB
	existing.Sex = p.Sex
	existing.Phone = p.Phone
	existing.CNIC = p.CNIC
	existing.Address = p.Address
	*p = *existing

	return numbering.TranslateDuplicate(s.patients.Update(ctx, existing))
}

func (s *Service) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Patient, int, error) {
	return s.patients.Search(ctx, params, limit, offset)
}

func validatePatient(p *Patient) error {
	if p.FullName == "" {
		return fmt.Errorf("full_name is required")
	}
	if p.DOB.IsZero() {
		return fmt.Errorf("dob is required")
	}
	if p.DOB.After(time.Now()) {
		return fmt.Errorf("dob cannot be in the future")
	}
	if !validSexes[p.Sex] {
		return fmt.Errorf("sex must be one of M, F, O")
	}
	if !cnicPattern.MatchString(p.CNIC) {
		return fmt.Errorf("cnic must be in format #####-#######-#")
	}
	if !phonePattern.MatchString(p.Phone) {
		return fmt.Errorf("phone must be a valid mobile number")
	}
	return nil
}
