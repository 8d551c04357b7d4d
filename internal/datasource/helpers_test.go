package datasource_test

import (
	"github.com/flagcore/flagcore-go/internal/ldmodel"
	"github.com/flagcore/flagcore-go/internal/ldvalue"
)

func flagFor(key string, version uint32) ldmodel.Flag {
	return ldmodel.Flag{Key: key, Version: version, Value: ldvalue.Bool(true)}
}
