package cxs

import (
	"strings"

	cdto "github.com/findy-network/findy-common-go/dto"
	"github.com/findy-network/findy-cxs/agent/async"
	"github.com/findy-network/findy-cxs/agent/bus"
	"github.com/findy-network/findy-cxs/agent/cxserr"
	"github.com/findy-network/findy-cxs/agent/handle"
	"github.com/findy-network/findy-cxs/protocol/connection"
	"github.com/findy-network/findy-cxs/std/didexchange/invitation"
	"github.com/findy-network/findy-wrapper-go/dto"
)

func (c *Context) addConn(conn *connection.Connection) (dto.Result, error) {
	h, err := c.conns.Allocate(conn)
	if err != nil {
		return dto.Result{}, err
	}
	c.bindConn(h, conn)
	return async.Handle(h), nil
}

func (c *Context) bindConn(h handle.Handle, conn *connection.Connection) {
	conn.SetNotify(notifier[connection.State](c, bus.Connection, h, conn.SourceID()))
}

// ConnectionCreate creates the inviter end of a connection. The handle is
// delivered in the result.
func (c *Context) ConnectionCreate(cmd uint32, sourceID string, cb async.Done) error {
	if err := checkCb(cb, 3); err != nil {
		return err
	}
	async.Run(cmd, func() (dto.Result, error) {
		return c.addConn(connection.New(sourceID))
	}, cb)
	return nil
}

// ConnectionCreateWithInvite creates the invitee end of a connection from the
// invitation JSON or the invitation URL.
func (c *Context) ConnectionCreateWithInvite(cmd uint32, sourceID, inviteDetails string, cb async.Done) error {
	if err := checkCb(cb, 4); err != nil {
		return err
	}
	if inviteDetails == "" {
		return cxserr.Param(3, "invite details empty")
	}
	var (
		inv *invitation.Invitation
		err error
	)
	if strings.HasPrefix(inviteDetails, "http") {
		inv, err = invitation.FromURL(inviteDetails, 3)
	} else {
		inv, err = invitation.Translate(inviteDetails, 3)
	}
	if err != nil {
		return err
	}
	async.Run(cmd, func() (dto.Result, error) {
		return c.addConn(connection.NewWithInvite(sourceID, inv))
	}, cb)
	return nil
}

// ConnectionConnect starts the connection protocol. Options JSON can be
// empty, which means QR. The inviter gets the invitation JSON in the result.
func (c *Context) ConnectionConnect(cmd uint32, h handle.Handle, optionsJSON string, cb async.Done) error {
	if err := checkCb(cb, 4); err != nil {
		return err
	}
	conn, err := c.conns.Resolve(h)
	if err != nil {
		return err
	}
	opts, err := connection.ParseOptions(optionsJSON, 3)
	if err != nil {
		return err
	}
	if err := conn.CheckConnect(); err != nil {
		return err
	}
	run(cmd, c.conns, h, func() (dto.Result, error) {
		if err := conn.Connect(c.ctx, c.agent, opts); err != nil {
			return dto.Result{}, err
		}
		if conn.Role() == connection.Inviter {
			details, err := conn.InviteDetails(false)
			return async.Str(details), err
		}
		return dto.Result{}, nil
	}, cb)
	return nil
}

func (c *Context) ConnectionGetState(cmd uint32, h handle.Handle, cb async.Done) error {
	return stateOf(cmd, c.conns, h, (*connection.Connection).State, cb)
}

// ConnectionUpdateState returns the current state. The inbound messages are
// pushed to the connection, there is nothing to poll.
func (c *Context) ConnectionUpdateState(cmd uint32, h handle.Handle, cb async.Done) error {
	return stateOf(cmd, c.conns, h, (*connection.Connection).State, cb)
}

func (c *Context) ConnectionSerialize(cmd uint32, h handle.Handle, cb async.Done) error {
	return serialize(cmd, c.conns, h, cb)
}

// ConnectionDeserialize builds the connection from the JSON. Our pairwise keys
// are loaded from the wallet.
func (c *Context) ConnectionDeserialize(cmd uint32, connJSON string, cb async.Done) error {
	return deserialize(cmd, c.conns, connJSON, func() (*connection.Connection, error) {
		return connection.Deserialize(c.agent, connJSON, 2)
	}, c.bindConn, cb)
}

// ConnectionInviteDetails returns the invitation JSON or URL when
// abbreviated.
func (c *Context) ConnectionInviteDetails(cmd uint32, h handle.Handle, abbreviated bool, cb async.Done) error {
	if err := checkCb(cb, 4); err != nil {
		return err
	}
	conn, err := c.conns.Resolve(h)
	if err != nil {
		return err
	}
	run(cmd, c.conns, h, func() (dto.Result, error) {
		details, err := conn.InviteDetails(abbreviated)
		return async.Str(details), err
	}, cb)
	return nil
}

// ConnectionSendMessage sends the basic message. The message ID is delivered
// in the result.
func (c *Context) ConnectionSendMessage(cmd uint32, h handle.Handle, msg string, cb async.Done) error {
	if err := checkCb(cb, 4); err != nil {
		return err
	}
	conn, err := c.conns.Resolve(h)
	if err != nil {
		return err
	}
	if msg == "" {
		return cxserr.Param(3, "message empty")
	}
	if err := conn.CheckSend(); err != nil {
		return err
	}
	run(cmd, c.conns, h, func() (dto.Result, error) {
		id, err := conn.SendMessage(c.ctx, c.agent, msg)
		return async.Str(id), err
	}, cb)
	return nil
}

// ConnectionGetMessages returns JSON array of the messages the connection has
// received. Empty type returns them all.
func (c *Context) ConnectionGetMessages(cmd uint32, h handle.Handle, msgType string, cb async.Done) error {
	if err := checkCb(cb, 4); err != nil {
		return err
	}
	conn, err := c.conns.Resolve(h)
	if err != nil {
		return err
	}
	run(cmd, c.conns, h, func() (dto.Result, error) {
		return async.Str(cdto.ToJSON(conn.Messages(msgType))), nil
	}, cb)
	return nil
}

// ConnectionRelease releases the handle and wipes the pairwise keys from the
// memory. A running command of the connection is let to end first.
func (c *Context) ConnectionRelease(h handle.Handle) error {
	conn, err := c.conns.Release(h)
	if err != nil {
		return err
	}
	conn.Release(c.agent)
	return nil
}
