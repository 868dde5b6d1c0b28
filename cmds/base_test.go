package cmds

import (
	"errors"
	"testing"

	"github.com/findy-network/findy-cxs/agent/async"
	"github.com/findy-network/findy-cxs/agent/cxserr"
	"github.com/findy-network/findy-wrapper-go/dto"
	"github.com/lainio/err2/assert"
)

func TestValidateTime(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	err := ValidateTime("21:45")
	assert.NoError(err)
	err = ValidateTime("01:37:48")
	assert.NoError(err)
	err = ValidateTime("24:00:00")
	assert.Error(err)
}

func TestValidateKey(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	assert.NoError(ValidateKey("6cih1cVgRH8yHD54nEYyPKLmdv67o8QbufxaTHot3Qxp"))
	assert.Error(ValidateKey(""))
	assert.Error(ValidateKey("6cih1cVgRH8yHD54nEYyPK"))
	assert.Error(ValidateKey("0OIl0OIl0OIl0OIl0OIl0OIl0OIl0OIl0OIl0OIl0OIl"))
}

func TestCall(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	h, err := Call(1, func(cmd uint32, cb async.Done) error {
		async.Run(cmd, func() (r dto.Result, err error) {
			return async.Handle(7), nil
		}, cb)
		return nil
	}).Handle()
	assert.NoError(err)
	assert.Equal(h, uint32(7))

	_, err = Call(2, func(uint32, async.Done) error {
		return cxserr.Param(3, "bad")
	}).Wait()
	assert.That(errors.Is(err, cxserr.ErrInvalidParam))
}
