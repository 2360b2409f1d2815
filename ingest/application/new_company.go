package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ingest-gateway/ingest/domain"

	"github.com/rs/zerolog"
)

const noAddress = "No address provided"

// NewCompanyStore é o que o fluxo de criação usa do armazenamento.
type NewCompanyStore interface {
	domain.UnitOfWorkFactory
	domain.CompanyRepository
	domain.LocationRepository
	CreateDevice(ctx context.Context, uow domain.UnitOfWork, serialNumber string, deviceType domain.DeviceType, locationID int64) (int64, error)
}

type SerialSource interface {
	Generate(ctx context.Context, uow domain.UnitOfWork) (string, error)
}

// NewCompanyHandler cria empresa, um local por dispositivo e os dispositivos,
// tudo numa única unidade de trabalho.
type NewCompanyHandler struct {
	store   NewCompanyStore
	serials SerialSource
}

func NewNewCompanyHandler(store NewCompanyStore, serials SerialSource) *NewCompanyHandler {
	return &NewCompanyHandler{store: store, serials: serials}
}

func (h *NewCompanyHandler) Handle(ctx context.Context, msg *domain.NewCompanyMessage) (bool, error) {
	if msg == nil {
		return false, domain.ErrNilMessage
	}

	name := strings.TrimSpace(msg.CompanyName)
	code := strings.TrimSpace(msg.CompanyCode)

	log := zerolog.Ctx(ctx).With().
		Str("message_id", msg.ID).
		Str("message_type", string(domain.KindNewCompany)).
		Str("company_code", code).
		Logger()

	if err := validateNewCompany(name, code, msg.Devices); err != nil {
		log.Warn().Err(err).Msg("new company rejected")
		return false, nil
	}

	existing, err := h.store.GetCompanyByCode(ctx, code)
	if err != nil {
		return failure(ctx, &log, fmt.Errorf("lookup company: %w", err))
	}
	if existing != nil {
		log.Warn().Int64("company_id", existing.ID).Msg("company code already exists")
		return false, nil
	}

	licensing, err := domain.ParseLicensing(msg.Licensing)
	if err != nil {
		log.Warn().Err(err).Msg("new company rejected")
		return false, nil
	}

	companyID, err := h.create(ctx, name, code, licensing, msg.Devices)
	if err != nil {
		return failure(ctx, &log, err)
	}

	log.Info().
		Int64("company_id", companyID).
		Int("devices", len(msg.Devices)).
		Msg("company created")
	return true, nil
}

func validateNewCompany(name, code string, devices []domain.DeviceDescriptor) error {
	switch {
	case name == "":
		return errors.New("companyName is required")
	case code == "":
		return errors.New("companyCode is required")
	case len(devices) == 0:
		return errors.New("at least one device is required")
	}
	return nil
}

// create roda a parte transacional. Qualquer erro desfaz a unidade de
// trabalho inteira.
func (h *NewCompanyHandler) create(ctx context.Context, name, code string, licensing domain.Licensing, devices []domain.DeviceDescriptor) (companyID int64, err error) {
	uow, err := h.store.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err == nil {
			return
		}
		if rbErr := uow.Rollback(); rbErr != nil && !errors.Is(rbErr, domain.ErrTxDone) {
			err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
	}()

	companyID, err = h.store.CreateCompany(ctx, uow, name, code, licensing)
	if err != nil {
		return 0, fmt.Errorf("create company: %w", err)
	}

	for i, d := range devices {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		deviceType, err := domain.ParseDeviceType(d.Type)
		if err != nil {
			return 0, fmt.Errorf("device %d: %w", i+1, err)
		}

		locationID, err := h.store.CreateLocation(ctx, uow, fmt.Sprintf("Location %d", i+1), addressOf(d), companyID)
		if err != nil {
			return 0, fmt.Errorf("device %d: create location: %w", i+1, err)
		}

		serial, err := h.serials.Generate(ctx, uow)
		if err != nil {
			return 0, fmt.Errorf("device %d: %w", i+1, err)
		}

		if _, err := h.store.CreateDevice(ctx, uow, serial, deviceType, locationID); err != nil {
			return 0, fmt.Errorf("device %d: create device %s: %w", i+1, serial, err)
		}
	}

	if err := uow.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return companyID, nil
}

func addressOf(d domain.DeviceDescriptor) string {
	if d.Address == nil || strings.TrimSpace(*d.Address) == "" {
		return noAddress
	}
	return *d.Address
}

// failure traduz um erro do fluxo no contrato dos handlers: cancelamento
// sobe como erro, o resto vira (false, nil).
func failure(ctx context.Context, log *zerolog.Logger, err error) (bool, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		log.Info().Err(err).Msg("message processing cancelled")
		return false, ctxErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		log.Info().Err(err).Msg("message processing cancelled")
		return false, err
	}

	ev := log.Error()
	if errors.Is(err, domain.ErrInvalidEnum) || errors.Is(err, domain.ErrDuplicateKey) {
		ev = log.Warn()
	}
	ev.Err(err).Msg("message processing failed")
	return false, nil
}
