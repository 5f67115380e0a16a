package utils

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/LeighHMitchell/AIMS-sub014/config"
	"github.com/bsm/redislock"
	"github.com/shopspring/decimal"
)

func GetTypeName[T any]() string {
	var v T
	typeOfT := reflect.TypeOf(v)
	return typeOfT.Name()
}

func DereferencePtr[T any](ptr *T, def T) T {
	if ptr == nil {
		return def
	}
	return *ptr
}

func NewFalse() *bool {
	b := false
	return &b
}

func NewTrue() *bool {
	b := true
	return &b
}

// ConvertToDecimal parses user-entered numbers that may carry thousand
// separators or a currency prefix ("USD 1,234.50").
func ConvertToDecimal(value string) (decimal.Decimal, error) {
	value = strings.ReplaceAll(value, ",", "")
	if idx := strings.LastIndexFunc(value, func(r rune) bool {
		return (r < '0' || r > '9') && r != '.' && r != '-'
	}); idx >= 0 {
		value = value[idx+1:]
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.Zero, errors.New("empty decimal string")
	}
	return decimal.NewFromString(value)
}

// ActivityImportLock obtains a per-activity exclusive lock so concurrent imports
// of the same activity cannot interleave. Returns a release func on success and
// ErrImportInProgress when another import holds the lock.
func ActivityImportLock(ctx context.Context, activityId int, moduleName string, functionName string) (func(), error) {
	logger := config.GetLogger()
	locker := config.GetRedisLock()
	if locker == nil {
		// Avoid nil-pointer panics when the redis lock isn't initialized yet.
		config.LogError(logger, moduleName, functionName, "Redis lock not initialized", activityId, errors.New("redis lock is nil"))
		return nil, errors.New("service not ready (redis lock not initialized)")
	}
	lockKey := fmt.Sprintf("activity-import:%d", activityId)
	lock, err := locker.Obtain(ctx, lockKey, 30*time.Second, nil)
	if err == redislock.ErrNotObtained {
		config.LogError(logger, moduleName, functionName, "Could not obtain import lock", activityId, err)
		return nil, ErrImportInProgress
	} else if err != nil {
		config.LogError(logger, moduleName, functionName, "Error obtaining import lock", activityId, err)
		return nil, err
	}
	release := func() {
		_ = lock.Release(ctx)
	}
	return release, nil
}
