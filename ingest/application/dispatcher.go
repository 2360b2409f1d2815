package application

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	"ingest-gateway/ingest/domain"
	"ingest-gateway/logger"

	"github.com/rs/zerolog"
)

type NewCompanyHandling interface {
	Handle(ctx context.Context, msg *domain.NewCompanyMessage) (bool, error)
}

type DeleteDevicesHandling interface {
	Handle(ctx context.Context, msg *domain.DeleteDevicesMessage) (bool, error)
}

// Dispatcher decodifica primeiro só o envelope, escolhe o tipo pelo
// messageType e então decodifica o payload inteiro no formato daquele tipo.
type Dispatcher struct {
	newCompany    NewCompanyHandling
	deleteDevices DeleteDevicesHandling
}

func NewDispatcher(newCompany NewCompanyHandling, deleteDevices DeleteDevicesHandling) *Dispatcher {
	return &Dispatcher{newCompany: newCompany, deleteDevices: deleteDevices}
}

// Process não guarda estado entre chamadas e pode rodar em paralelo.
func (d *Dispatcher) Process(ctx context.Context, raw []byte, correlationID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	ctx = logger.WithCorrelationID(ctx, correlationID)
	log := zerolog.Ctx(ctx)

	if len(bytes.TrimSpace(raw)) == 0 {
		log.Warn().Msg("empty message rejected")
		return false, nil
	}

	var env domain.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		log.Warn().Err(err).Msg("malformed message envelope")
		return false, nil
	}
	if strings.TrimSpace(string(env.MessageType)) == "" {
		log.Warn().Str("message_id", env.ID).Msg("message without messageType")
		return false, nil
	}

	switch env.MessageType {
	case domain.KindNewCompany:
		var msg domain.NewCompanyMessage
		if !decode(log, raw, &msg, env) {
			return false, nil
		}
		return d.newCompany.Handle(ctx, &msg)

	case domain.KindDeleteDevices:
		var msg domain.DeleteDevicesMessage
		if !decode(log, raw, &msg, env) {
			return false, nil
		}
		return d.deleteDevices.Handle(ctx, &msg)

	default:
		log.Warn().Str("message_id", env.ID).Str("message_type", string(env.MessageType)).Msg("unknown message type")
		return false, nil
	}
}

func decode(log *zerolog.Logger, raw []byte, v any, env domain.Envelope) bool {
	if err := json.Unmarshal(raw, v); err != nil {
		log.Warn().Err(err).
			Str("message_id", env.ID).
			Str("message_type", string(env.MessageType)).
			Msg("message does not match its type")
		return false
	}
	return true
}
