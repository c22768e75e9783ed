package logsvc

import (
	"bytes"
	"log"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/masomo-curriculum/core"
)

func TestRollbarLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewRollbarLogger(log.New(&buf, "", 0), core.NewTestConfig())

	id := core.Identity{Subject: "admin", Name: "Admin"}
	logger.Error("advance failed", errors.New("kaput"), map[string]interface{}{"stage": "Gap Analysis", "id": "r1"}, id)
	logger.Info("started")

	assert.Equal(t,
		"ERROR advance failed id=r1 stage=Gap Analysis caller=admin err=\"kaput\"\n"+
			"INFO started\n",
		buf.String(),
	)
}

func TestParseEntry(t *testing.T) {
	err := errors.New("kaput")
	e := parseEntry("msg", []interface{}{
		core.Identity{Subject: "first"},
		err,
		7,
		core.Identity{Subject: "second"},
	})

	if assert.NotNil(t, e.caller) {
		assert.Equal(t, "first", e.caller.Subject)
	}
	assert.Equal(t, []error{err}, e.errs)
	assert.Equal(t, map[string]interface{}{"arg2": 7}, e.fields)
	assert.Equal(t, []interface{}{"msg", err, map[string]interface{}{"arg2": 7}}, e.rollbarArgs())

	assert.Equal(t, []interface{}{"bare"}, parseEntry("bare", nil).rollbarArgs())
}
