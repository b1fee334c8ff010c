package config

import (
	stderrors "errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/vnykmshr/flowbench/pkg/common/errors"
)

var validate = validator.New()

// Validate checks struct tag rules and the rules that span sections.
func Validate(cfg *Config) error {
	var errs []error

	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if !stderrors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			errs = append(errs, errors.NewValidationError(
				"config", fe.Namespace(), fe.Value(), fmt.Sprintf("failed %q rule", ruleName(fe)),
			))
		}
	}

	capacity := cfg.Transfer.ChannelCapacity
	if capacity > 0 {
		if cfg.Transfer.WriteChunkSize > capacity {
			errs = append(errs, errors.NewValidationError(
				"config", "transfer.write_chunk_size", cfg.Transfer.WriteChunkSize.String(),
				"must not exceed transfer.channel_capacity",
			))
		}
		if cfg.Transfer.ReadChunkSize > capacity {
			errs = append(errs, errors.NewValidationError(
				"config", "transfer.read_chunk_size", cfg.Transfer.ReadChunkSize.String(),
				"must not exceed transfer.channel_capacity",
			))
		}
		if cfg.Transfer.ReadChunkSize == 0 && cfg.Source.ChunkSize > capacity {
			errs = append(errs, errors.NewValidationError(
				"config", "source.chunk_size", cfg.Source.ChunkSize.String(),
				"must not exceed transfer.channel_capacity",
			).WithHint("lower source.chunk_size or set transfer.read_chunk_size"))
		}
	}

	if cfg.Schedule.Cron != "" && cfg.Schedule.Every > 0 {
		errs = append(errs, errors.NewValidationError(
			"config", "schedule", cfg.Schedule.Cron, "set either cron or every, not both",
		))
	}

	return stderrors.Join(errs...)
}

func ruleName(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fe.Tag() + "=" + fe.Param()
}
