package clinic

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store on Postgres.
type PostgresStore struct {
	db DB
}

// NewPostgresStore creates a store.
func NewPostgresStore(db DB) *PostgresStore {
	if db == nil {
		panic("clinic: db required")
	}
	return &PostgresStore{db: db}
}

var _ Store = (*PostgresStore)(nil)

const accountColumns = `id, name, whatsapp_number, COALESCE(owner_professional_id::text, ''), timezone, COALESCE(address, ''), COALESCE(phone, ''), COALESCE(staff_email, ''), created_at`

func (s *PostgresStore) AccountByNumber(ctx context.Context, digits string) (*Account, error) {
	return scanAccount(s.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE whatsapp_number = $1`, digits))
}

func (s *PostgresStore) Account(ctx context.Context, id string) (*Account, error) {
	return scanAccount(s.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
}

func (s *PostgresStore) SaveAccount(ctx context.Context, acc *Account) error {
	if acc.CreatedAt.IsZero() {
		acc.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO accounts (id, name, whatsapp_number, owner_professional_id, timezone, address, phone, staff_email, created_at)
		VALUES ($1, $2, $3, NULLIF($4, '')::uuid, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			whatsapp_number = EXCLUDED.whatsapp_number,
			owner_professional_id = EXCLUDED.owner_professional_id,
			timezone = EXCLUDED.timezone,
			address = EXCLUDED.address,
			phone = EXCLUDED.phone,
			staff_email = EXCLUDED.staff_email`,
		acc.ID, acc.Name, acc.WhatsAppNumber, acc.OwnerProfessionalID, acc.Timezone, acc.Address, acc.Phone, acc.StaffEmail, acc.CreatedAt)
	if err != nil {
		return fmt.Errorf("clinic: save account: %w", err)
	}
	return nil
}

func (s *PostgresStore) Subscription(ctx context.Context, accountID string) (*Subscription, error) {
	var sub Subscription
	err := s.db.QueryRow(ctx, `
		SELECT account_id, plan, active, ai_message_limit FROM subscriptions WHERE account_id = $1`, accountID,
	).Scan(&sub.AccountID, &sub.Plan, &sub.Active, &sub.AIMessageLimit)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("clinic: load subscription: %w", err)
	}
	return &sub, nil
}

func (s *PostgresStore) SaveSubscription(ctx context.Context, sub *Subscription) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO subscriptions (account_id, plan, active, ai_message_limit)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (account_id) DO UPDATE SET plan = EXCLUDED.plan, active = EXCLUDED.active, ai_message_limit = EXCLUDED.ai_message_limit`,
		sub.AccountID, sub.Plan, sub.Active, sub.AIMessageLimit)
	if err != nil {
		return fmt.Errorf("clinic: save subscription: %w", err)
	}
	return nil
}

func (s *PostgresStore) Professional(ctx context.Context, id string) (*Professional, error) {
	var p Professional
	err := s.db.QueryRow(ctx, `
		SELECT id, account_id, full_name, COALESCE(specialty, ''), COALESCE(registry_number, ''), COALESCE(email, ''), COALESCE(phone, '')
		FROM professionals WHERE id = $1`, id,
	).Scan(&p.ID, &p.AccountID, &p.FullName, &p.Specialty, &p.RegistryNumber, &p.Email, &p.Phone)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProfessionalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("clinic: load professional: %w", err)
	}
	return &p, nil
}

func (s *PostgresStore) SaveProfessional(ctx context.Context, pro *Professional) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO professionals (id, account_id, full_name, specialty, registry_number, email, phone)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET full_name = EXCLUDED.full_name, specialty = EXCLUDED.specialty,
			registry_number = EXCLUDED.registry_number, email = EXCLUDED.email, phone = EXCLUDED.phone`,
		pro.ID, pro.AccountID, pro.FullName, pro.Specialty, pro.RegistryNumber, pro.Email, pro.Phone)
	if err != nil {
		return fmt.Errorf("clinic: save professional: %w", err)
	}
	return nil
}

const serviceColumns = `id, account_id, professional_id, name, COALESCE(description, ''), duration_minutes, price_cents, active`

func (s *PostgresStore) Service(ctx context.Context, id string) (*Service, error) {
	return scanService(s.db.QueryRow(ctx, `SELECT `+serviceColumns+` FROM services WHERE id = $1`, id))
}

// DefaultService returns the professional's oldest active service.
func (s *PostgresStore) DefaultService(ctx context.Context, professionalID string) (*Service, error) {
	return scanService(s.db.QueryRow(ctx, `
		SELECT `+serviceColumns+` FROM services
		WHERE professional_id = $1 AND active
		ORDER BY created_at ASC
		LIMIT 1`, professionalID))
}

func (s *PostgresStore) SaveService(ctx context.Context, svc *Service) error {
	if svc.ID == "" {
		svc.ID = uuid.NewString()
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO services (id, account_id, professional_id, name, description, duration_minutes, price_cents, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, description = EXCLUDED.description,
			duration_minutes = EXCLUDED.duration_minutes, price_cents = EXCLUDED.price_cents, active = EXCLUDED.active`,
		svc.ID, svc.AccountID, svc.ProfessionalID, svc.Name, svc.Description, svc.DurationMinutes, svc.PriceCents, svc.Active)
	if err != nil {
		return fmt.Errorf("clinic: save service: %w", err)
	}
	return nil
}

const patientColumns = `id, account_id, full_name, phone, cpf, birth_date, COALESCE(email, ''), billing_day, created_at`

func (s *PostgresStore) Patient(ctx context.Context, id string) (*Patient, error) {
	return scanPatient(s.db.QueryRow(ctx, `SELECT `+patientColumns+` FROM patients WHERE id = $1`, id))
}

func (s *PostgresStore) PatientByPhone(ctx context.Context, accountID, phone string) (*Patient, error) {
	return scanPatient(s.db.QueryRow(ctx, `SELECT `+patientColumns+` FROM patients WHERE account_id = $1 AND phone = $2`, accountID, phone))
}

func (s *PostgresStore) CreatePatient(ctx context.Context, p *Patient) error {
	p.CreatedAt = time.Now().UTC()
	_, err := s.db.Exec(ctx, `
		INSERT INTO patients (id, account_id, full_name, phone, cpf, birth_date, email, billing_day, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9)`,
		p.ID, p.AccountID, p.FullName, p.Phone, p.CPF, p.BirthDate, p.Email, p.BillingDay, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("clinic: insert patient: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdatePatientName(ctx context.Context, patientID, fullName string) error {
	tag, err := s.db.Exec(ctx, `UPDATE patients SET full_name = $2 WHERE id = $1`, patientID, fullName)
	if err != nil {
		return fmt.Errorf("clinic: update patient name: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPatientNotFound
	}
	return nil
}

// UpdatePatientDetails sets the CPF and birth date when provided, leaving nil fields untouched.
func (s *PostgresStore) UpdatePatientDetails(ctx context.Context, patientID string, cpf *string, birthDate *time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE patients SET cpf = COALESCE($2, cpf), birth_date = COALESCE($3, birth_date) WHERE id = $1`,
		patientID, cpf, birthDate)
	if err != nil {
		return fmt.Errorf("clinic: update patient details: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPatientNotFound
	}
	return nil
}

func (s *PostgresStore) PatientsWithBillingDay(ctx context.Context, day int) ([]Patient, error) {
	rows, err := s.db.Query(ctx, `SELECT `+patientColumns+` FROM patients WHERE billing_day = $1 ORDER BY created_at`, day)
	if err != nil {
		return nil, fmt.Errorf("clinic: list billing patients: %w", err)
	}
	defer rows.Close()
	var out []Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

const faqColumns = `id, account_id, category, intent_key, example_questions, answer`

func (s *PostgresStore) FAQ(ctx context.Context, accountID, intentKey string) (*FAQItem, error) {
	var f FAQItem
	err := s.db.QueryRow(ctx, `SELECT `+faqColumns+` FROM faq_items WHERE account_id = $1 AND intent_key = $2`, accountID, intentKey).
		Scan(&f.ID, &f.AccountID, &f.Category, &f.IntentKey, &f.ExampleQuestions, &f.Answer)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrFAQNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("clinic: load faq: %w", err)
	}
	return &f, nil
}

func (s *PostgresStore) ListFAQ(ctx context.Context, accountID string) ([]FAQItem, error) {
	rows, err := s.db.Query(ctx, `SELECT `+faqColumns+` FROM faq_items WHERE account_id = $1 ORDER BY category, intent_key`, accountID)
	if err != nil {
		return nil, fmt.Errorf("clinic: list faq: %w", err)
	}
	defer rows.Close()
	var out []FAQItem
	for rows.Next() {
		var f FAQItem
		if err := rows.Scan(&f.ID, &f.AccountID, &f.Category, &f.IntentKey, &f.ExampleQuestions, &f.Answer); err != nil {
			return nil, fmt.Errorf("clinic: scan faq: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpsertFAQ(ctx context.Context, item *FAQItem) error {
	err := s.db.QueryRow(ctx, `
		INSERT INTO faq_items (account_id, category, intent_key, example_questions, answer)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (account_id, intent_key) DO UPDATE SET
			category = EXCLUDED.category, example_questions = EXCLUDED.example_questions, answer = EXCLUDED.answer
		RETURNING id`,
		item.AccountID, item.Category, item.IntentKey, item.ExampleQuestions, item.Answer,
	).Scan(&item.ID)
	if err != nil {
		return fmt.Errorf("clinic: upsert faq: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateDocumentRequest(ctx context.Context, req *DocumentRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Status == "" {
		req.Status = RequestPending
	}
	req.CreatedAt = time.Now().UTC()
	_, err := s.db.Exec(ctx, `
		INSERT INTO document_requests (id, account_id, patient_id, assigned_professional_id, kind, details, status, created_at)
		VALUES ($1, $2, $3, NULLIF($4, '')::uuid, $5, $6, $7, $8)`,
		req.ID, req.AccountID, req.PatientID, req.AssignedProfessionalID, string(req.Kind), req.Details, string(req.Status), req.CreatedAt)
	if err != nil {
		return fmt.Errorf("clinic: insert document request: %w", err)
	}
	return nil
}

func (s *PostgresStore) CompleteDocumentRequest(ctx context.Context, id string, at time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE document_requests SET status = $2, completed_at = $3 WHERE id = $1`,
		id, string(RequestCompleted), at)
	if err != nil {
		return fmt.Errorf("clinic: complete document request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRequestNotFound
	}
	return nil
}

func (s *PostgresStore) ListDocumentRequests(ctx context.Context, accountID string, status RequestStatus) ([]DocumentRequest, error) {
	query := `
		SELECT id, account_id, patient_id, COALESCE(assigned_professional_id::text, ''), kind, details, status, created_at, completed_at
		FROM document_requests WHERE account_id = $1`
	args := []any{accountID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("clinic: list document requests: %w", err)
	}
	defer rows.Close()
	var out []DocumentRequest
	for rows.Next() {
		var (
			r            DocumentRequest
			kind, status string
		)
		if err := rows.Scan(&r.ID, &r.AccountID, &r.PatientID, &r.AssignedProfessionalID, &kind, &r.Details, &status, &r.CreatedAt, &r.CompletedAt); err != nil {
			return nil, fmt.Errorf("clinic: scan document request: %w", err)
		}
		r.Kind = RequestKind(kind)
		r.Status = RequestStatus(status)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) RecordNPS(ctx context.Context, fb *NPSFeedback) error {
	if fb.ID == "" {
		fb.ID = uuid.NewString()
	}
	fb.CreatedAt = time.Now().UTC()
	_, err := s.db.Exec(ctx, `
		INSERT INTO nps_feedback (id, patient_id, professional_id, appointment_id, score, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		fb.ID, fb.PatientID, fb.ProfessionalID, fb.AppointmentID, fb.Score, fb.CreatedAt)
	if err != nil {
		return fmt.Errorf("clinic: insert nps feedback: %w", err)
	}
	return nil
}

func scanAccount(row pgx.Row) (*Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Name, &a.WhatsAppNumber, &a.OwnerProfessionalID, &a.Timezone, &a.Address, &a.Phone, &a.StaffEmail, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("clinic: scan account: %w", err)
	}
	return &a, nil
}

func scanService(row pgx.Row) (*Service, error) {
	var svc Service
	err := row.Scan(&svc.ID, &svc.AccountID, &svc.ProfessionalID, &svc.Name, &svc.Description, &svc.DurationMinutes, &svc.PriceCents, &svc.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrServiceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("clinic: scan service: %w", err)
	}
	return &svc, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.AccountID, &p.FullName, &p.Phone, &p.CPF, &p.BirthDate, &p.Email, &p.BillingDay, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPatientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("clinic: scan patient: %w", err)
	}
	return &p, nil
}
