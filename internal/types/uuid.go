package types

import (
	"strings"

	"github.com/oklog/ulid/v2"
)

const (
	UUID_PREFIX_SUBSCRIPTION           = "sub"
	UUID_PREFIX_SUBSCRIPTION_LINE_ITEM = "subli"
	UUID_PREFIX_SUBSCRIPTION_EVENT     = "subevt"
	UUID_PREFIX_INSTALLMENT            = "inst"
	UUID_PREFIX_INSTALLMENT_LINE_ITEM  = "instli"
	UUID_PREFIX_INSTALLMENT_DETAIL     = "instd"
)

// GenerateUUID returns a lexically sortable unique id
func GenerateUUID() string {
	return strings.ToLower(ulid.Make().String())
}

// GenerateUUIDWithPrefix returns a unique id in the form prefix_ulid
func GenerateUUIDWithPrefix(prefix string) string {
	if prefix == "" {
		return GenerateUUID()
	}
	return prefix + "_" + GenerateUUID()
}
