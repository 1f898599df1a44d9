package clinic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/wolfman30/atma-clinic-ai/pkg/logging"
)

// PlanVerdict is the outcome of checking an account's subscription.
type PlanVerdict int

const (
	PlanAllowed PlanVerdict = iota
	PlanMissing
	PlanIncompatible
)

// Directory wraps Store with the lookups the conversation flow needs.
type Directory struct {
	store  Store
	logger *logging.Logger
}

// NewDirectory creates a directory.
func NewDirectory(store Store, logger *logging.Logger) *Directory {
	if store == nil {
		panic("clinic: store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Directory{store: store, logger: logger}
}

// Store exposes the underlying store.
func (d *Directory) Store() Store { return d.store }

// ResolveAccount finds the account that owns the WhatsApp number a message was sent to.
func (d *Directory) ResolveAccount(ctx context.Context, to string) (*Account, error) {
	digits := Digits(to)
	if digits == "" {
		return nil, ErrAccountNotFound
	}
	return d.store.AccountByNumber(ctx, digits)
}

// EnsurePatient returns the patient with this phone in the account, creating
// a placeholder record on first contact.
func (d *Directory) EnsurePatient(ctx context.Context, accountID, phone string) (*Patient, bool, error) {
	digits := Digits(phone)
	if digits == "" {
		return nil, false, errors.New("clinic: patient phone required")
	}
	p, err := d.store.PatientByPhone(ctx, accountID, digits)
	if err == nil {
		return p, false, nil
	}
	if !errors.Is(err, ErrPatientNotFound) {
		return nil, false, err
	}
	p = &Patient{
		ID:        uuid.NewString(),
		AccountID: accountID,
		FullName:  PlaceholderName,
		Phone:     digits,
	}
	if err := d.store.CreatePatient(ctx, p); err != nil {
		return nil, false, fmt.Errorf("clinic: create patient: %w", err)
	}
	d.logger.Info("patient created on first contact", "account_id", accountID, "patient_id", p.ID)
	return p, true, nil
}

// CheckPlan reports whether the account may use the assistant.
func (d *Directory) CheckPlan(ctx context.Context, accountID string) (PlanVerdict, error) {
	sub, err := d.store.Subscription(ctx, accountID)
	if err != nil {
		return PlanMissing, err
	}
	if sub == nil {
		return PlanMissing, nil
	}
	if !sub.AllowsAssistant() {
		return PlanIncompatible, nil
	}
	return PlanAllowed, nil
}

// RequireAssistant returns ErrNoSubscription or ErrPlanIncompatible when the
// account may not use the assistant.
func (d *Directory) RequireAssistant(ctx context.Context, accountID string) error {
	verdict, err := d.CheckPlan(ctx, accountID)
	if err != nil {
		return fmt.Errorf("clinic: load subscription: %w", err)
	}
	switch verdict {
	case PlanMissing:
		return ErrNoSubscription
	case PlanIncompatible:
		return ErrPlanIncompatible
	}
	return nil
}

// CreateAccount stores a new tenant with its owner, subscription and default FAQ.
func (d *Directory) CreateAccount(ctx context.Context, acc *Account, owner *Professional, sub *Subscription) error {
	if strings.TrimSpace(acc.Name) == "" {
		return errors.New("clinic: account name required")
	}
	acc.WhatsAppNumber = Digits(acc.WhatsAppNumber)
	if acc.WhatsAppNumber == "" {
		return errors.New("clinic: whatsapp number required")
	}
	if acc.ID == "" {
		acc.ID = uuid.NewString()
	}
	if acc.Timezone == "" {
		acc.Timezone = DefaultTimezone
	}
	if owner != nil {
		if owner.ID == "" {
			owner.ID = uuid.NewString()
		}
		owner.AccountID = acc.ID
		acc.OwnerProfessionalID = owner.ID
	}
	if err := d.store.SaveAccount(ctx, acc); err != nil {
		return err
	}
	if owner != nil {
		if err := d.store.SaveProfessional(ctx, owner); err != nil {
			return err
		}
	}
	if sub != nil {
		sub.AccountID = acc.ID
		if err := d.store.SaveSubscription(ctx, sub); err != nil {
			return err
		}
	}
	if err := SeedDefaultFAQ(ctx, d.store, acc.ID); err != nil {
		return err
	}
	d.logger.Info("account created", "account_id", acc.ID, "name", acc.Name)
	return nil
}
