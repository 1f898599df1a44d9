package clinic

import (
	"context"
	"time"
)

// Store persists clinic records. Lookups return the package's ErrXNotFound
// sentinels when a row is missing, except Subscription which returns nil, nil.
type Store interface {
	AccountByNumber(ctx context.Context, digits string) (*Account, error)
	Account(ctx context.Context, id string) (*Account, error)
	SaveAccount(ctx context.Context, acc *Account) error
	Subscription(ctx context.Context, accountID string) (*Subscription, error)
	SaveSubscription(ctx context.Context, sub *Subscription) error

	Professional(ctx context.Context, id string) (*Professional, error)
	SaveProfessional(ctx context.Context, pro *Professional) error
	Service(ctx context.Context, id string) (*Service, error)
	DefaultService(ctx context.Context, professionalID string) (*Service, error)
	SaveService(ctx context.Context, svc *Service) error

	Patient(ctx context.Context, id string) (*Patient, error)
	PatientByPhone(ctx context.Context, accountID, phone string) (*Patient, error)
	CreatePatient(ctx context.Context, p *Patient) error
	UpdatePatientName(ctx context.Context, patientID, fullName string) error
	UpdatePatientDetails(ctx context.Context, patientID string, cpf *string, birthDate *time.Time) error
	PatientsWithBillingDay(ctx context.Context, day int) ([]Patient, error)

	FAQ(ctx context.Context, accountID, intentKey string) (*FAQItem, error)
	ListFAQ(ctx context.Context, accountID string) ([]FAQItem, error)
	UpsertFAQ(ctx context.Context, item *FAQItem) error

	CreateDocumentRequest(ctx context.Context, req *DocumentRequest) error
	CompleteDocumentRequest(ctx context.Context, id string, at time.Time) error
	ListDocumentRequests(ctx context.Context, accountID string, status RequestStatus) ([]DocumentRequest, error)

	RecordNPS(ctx context.Context, fb *NPSFeedback) error
}
