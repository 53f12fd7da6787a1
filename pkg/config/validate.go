package config

import (
	"errors"
	"fmt"
	"math/bits"
	"slices"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/yxiaowhut/streamit/internal/bytesize"
	"github.com/yxiaowhut/streamit/internal/telemetry"
	"github.com/yxiaowhut/streamit/pkg/dma"
	"github.com/yxiaowhut/streamit/pkg/localstore"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks struct tags and the cross-field rules tags cannot express.
// All problems are reported together.
func Validate(cfg *Config) error {
	var errs []error

	if err := structValidator().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			errs = append(errs, fmt.Errorf("%s: failed %q (value %v)", fieldPath(fe), fe.Tag(), fe.Value()))
		}
	}

	errs = append(errs, validateProfiling(&cfg.Telemetry.Profiling)...)
	errs = append(errs, validateCore(&cfg.Core)...)
	errs = append(errs, validateShared(&cfg.Shared)...)

	return errors.Join(errs...)
}

// fieldPath renders "Config.Core.Tags" as "core.tags".
func fieldPath(fe validator.FieldError) string {
	ns := fe.StructNamespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		ns = ns[i+1:]
	}
	return strings.ToLower(ns)
}

func validateProfiling(cfg *ProfilingConfig) []error {
	known := telemetry.ProfileTypes()
	var errs []error
	for _, pt := range cfg.ProfileTypes {
		if !slices.Contains(known, pt) {
			errs = append(errs, fmt.Errorf("telemetry.profiling.profile_types: unknown %q (known: %s)", pt, strings.Join(known, ", ")))
		}
	}
	return errs
}

func validateCore(cfg *CoreConfig) []error {
	var errs []error

	if cfg.LocalStoreSize != 0 {
		if _, err := cfg.LocalStoreSize.Uint32(); err != nil {
			errs = append(errs, fmt.Errorf("core.local_store_size: %w", err))
		} else if !localstore.Aligned(uint64(cfg.LocalStoreSize)) {
			errs = append(errs, fmt.Errorf("core.local_store_size: %s is not a multiple of %d", cfg.LocalStoreSize, localstore.QwordSize))
		}
	}

	if cfg.MaxTransferSize != 0 {
		if cfg.MaxTransferSize > dma.MaxTransferSize || !localstore.Aligned(uint64(cfg.MaxTransferSize)) {
			errs = append(errs, fmt.Errorf("core.max_transfer_size: %s must be a multiple of %d no larger than %s",
				cfg.MaxTransferSize, localstore.QwordSize, bytesize.ByteSize(dma.MaxTransferSize)))
		}
	}
	return errs
}

func validateShared(cfg *SharedConfig) []error {
	var errs []error

	if cfg.PageSize != 0 {
		if cfg.PageSize < localstore.QwordSize || cfg.PageSize > bytesize.GiB || bits.OnesCount64(uint64(cfg.PageSize)) != 1 {
			errs = append(errs, fmt.Errorf("shared.page_size: %s must be a power of two between 16B and 1GiB", cfg.PageSize))
		}
	}

	switch cfg.Backend {
	case BackendFilesystem:
		if cfg.Filesystem.Path == "" {
			errs = append(errs, errors.New("shared.filesystem.path is required for the filesystem backend"))
		}
	case BackendBadger:
		if cfg.Badger.Path == "" && !cfg.Badger.InMemory {
			errs = append(errs, errors.New("shared.badger.path is required unless in_memory is set"))
		}
	case BackendS3:
		if cfg.S3.Bucket == "" {
			errs = append(errs, errors.New("shared.s3.bucket is required for the s3 backend"))
		}
		if (cfg.S3.AccessKeyID == "") != (cfg.S3.SecretAccessKey == "") {
			errs = append(errs, errors.New("shared.s3: access_key_id and secret_access_key must be set together"))
		}
	}
	return errs
}
