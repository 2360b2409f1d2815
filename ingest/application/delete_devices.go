package application

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"ingest-gateway/ingest/domain"

	"github.com/rs/zerolog"
)

// DeleteBatchSize é o máximo de números de série por comando de remoção.
const DeleteBatchSize = 1000

type DeviceDeleter interface {
	DeleteDevicesBySerialNumbers(ctx context.Context, uow domain.UnitOfWork, serialNumbers []string) (int64, error)
}

// DeleteDevicesHandler remove dispositivos em lotes. Cada lote é atômico por
// si só; lotes já aplicados não voltam atrás se um lote seguinte falhar.
type DeleteDevicesHandler struct {
	repo      DeviceDeleter
	batchSize int
}

func NewDeleteDevicesHandler(repo DeviceDeleter) *DeleteDevicesHandler {
	return &DeleteDevicesHandler{repo: repo, batchSize: DeleteBatchSize}
}

func (h *DeleteDevicesHandler) Handle(ctx context.Context, msg *domain.DeleteDevicesMessage) (bool, error) {
	if msg == nil {
		return false, domain.ErrNilMessage
	}

	log := zerolog.Ctx(ctx).With().
		Str("message_id", msg.ID).
		Str("message_type", string(domain.KindDeleteDevices)).
		Int("requested", len(msg.SerialNumbers)).
		Logger()

	if len(msg.SerialNumbers) == 0 {
		log.Debug().Msg("nothing to delete")
		return true, nil
	}

	if err := validateSerialNumbers(msg.SerialNumbers); err != nil {
		log.Warn().Err(err).Msg("delete devices rejected")
		return false, nil
	}

	var deleted int64
	for chunk := range slices.Chunk(msg.SerialNumbers, h.batchSize) {
		if err := ctx.Err(); err != nil {
			log.Info().Int64("deleted", deleted).Msg("delete devices cancelled")
			return false, err
		}

		n, err := h.repo.DeleteDevicesBySerialNumbers(ctx, nil, chunk)
		if err != nil {
			return failure(ctx, &log, fmt.Errorf("delete batch of %d: %w", len(chunk), err))
		}
		if n < int64(len(chunk)) {
			log.Debug().Int("batch", len(chunk)).Int64("deleted", n).Msg("some serial numbers were not found")
		}
		deleted += n
	}

	log.Info().Int64("deleted", deleted).Msg("devices deleted")
	return true, nil
}

// validateSerialNumbers recusa entradas em branco e repetidas (igualdade exata).
func validateSerialNumbers(serials []string) error {
	seen := make(map[string]struct{}, len(serials))
	for i, s := range serials {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("serialNumbers[%d] is blank", i)
		}
		if _, dup := seen[s]; dup {
			return fmt.Errorf("serialNumbers[%d] %q is duplicated", i, s)
		}
		seen[s] = struct{}{}
	}
	return nil
}
