package connection

import (
	"context"

	"github.com/findy-network/findy-cxs/agent/cloud"
	"github.com/findy-network/findy-cxs/agent/cxserr"
	"github.com/findy-network/findy-cxs/agent/didcomm"
	"github.com/findy-network/findy-cxs/agent/pltype"
	"github.com/findy-network/findy-cxs/agent/ssi"
	"github.com/findy-network/findy-cxs/std/basicmessage"
	"github.com/findy-network/findy-cxs/std/common"
	"github.com/findy-network/findy-cxs/std/didexchange"
	"github.com/findy-network/findy-cxs/std/didexchange/invitation"
	"github.com/findy-network/findy-cxs/std/didexchange/signature"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

// Connect starts the connection protocol. The inviter creates the pairwise
// DID and the invitation. The invitee sends the connection request to the
// invitation endpoint. If the sending fails the state stays as it was and
// connect can be called again.
func (c *Connection) Connect(ctx context.Context, a *cloud.Agent, opts Options) (err error) {
	defer err2.Handle(&err, "connect %s", c.sourceID)

	c.op.Lock()
	defer c.op.Unlock()
	try.To(c.CheckConnect())

	c.lk.Lock()
	c.opts = opts
	myDID := c.myDID
	c.lk.Unlock()
	if myDID == nil {
		myDID = try.To1(a.NewDID())
		c.lk.Lock()
		c.myDID = myDID
		c.lk.Unlock()
	}

	if c.role == Inviter {
		inv := invitation.New(a.Label, a.Endpoint, myDID.VerKey())
		c.lk.Lock()
		c.invitation = inv
		c.threadID = inv.ID
		c.lk.Unlock()
		if opts.ConnectionType == TypeSMS {
			glog.V(1).Infof("connection %s: invitation for %s ready",
				c.sourceID, opts.Phone)
		}
		return c.setState(Invited)
	}

	inv := c.invitation
	to := try.To1(a.OutDID(inv.RecipientKeys[0]))
	req := didexchange.NewRequest(a.Label, inv.ID,
		didexchange.NewConnection(myDID.Did(), myDID.VerKey(), a.Endpoint))
	if err := a.SendAnon(ctx, to, inv.ServiceEndpoint, req); err != nil {
		return cxserr.Wrap(cxserr.ConnectionError, err, "send request")
	}
	c.lk.Lock()
	c.threadID = req.ThreadID()
	c.theirEndpoint = inv.ServiceEndpoint
	c.lk.Unlock()
	return c.setState(RequestSent)
}

// Receive handles the inbound message of the connection. The messages of
// the connection protocol are processed here. Other messages are returned to
// the caller for routing, but only when the connection is ready and the
// message comes from the other end of it.
func (c *Connection) Receive(ctx context.Context, a *cloud.Agent, senderVK string, payload []byte) (msg didcomm.MessageHdr, err error) {
	defer err2.Handle(&err, "connection %s receive", c.sourceID)

	msg = try.To1(didcomm.Parse(payload))

	c.op.Lock()
	defer c.op.Unlock()
	if c.isReleased() {
		return nil, ErrReleased
	}

	switch m := msg.(type) {
	case *didexchange.Request:
		return nil, c.handleRequest(ctx, a, m, senderVK)
	case *didexchange.Response:
		return nil, c.handleResponse(ctx, a, m, senderVK)
	case *common.Ack:
		if m.Type == pltype.AriesConnectionAck {
			glog.V(3).Infof("connection %s: ack in %s", c.sourceID, c.State())
			return nil, nil
		}
	}

	try.To(c.CheckSend())
	c.lk.RLock()
	theirVK := c.theirDID.VerKey()
	c.lk.RUnlock()
	if senderVK != theirVK {
		return nil, cxserr.New(cxserr.CryptoError,
			"message %s from unknown sender", msg.Hdr().Type)
	}
	return msg, nil
}

func (c *Connection) handleRequest(ctx context.Context, a *cloud.Agent, req *didexchange.Request, senderVK string) (err error) {
	defer err2.Handle(&err, "connection request")

	if c.role != Inviter {
		return cxserr.State("invitee cannot handle a connection request")
	}
	try.To(c.checkState(Invited))
	if req.ThreadID() != c.ThreadID() {
		return cxserr.New(cxserr.InvalidParam,
			"request to unknown invitation %s", req.ThreadID())
	}
	try.To(req.Connection.Validate())
	doc := req.Connection.DIDDoc
	if senderVK != "" && senderVK != doc.VerKey() {
		return cxserr.New(cxserr.CryptoError, "request sender is not the DID owner")
	}
	theirDID := try.To1(a.OutDID(doc.VerKey()))

	c.lk.Lock()
	c.theirDID = theirDID
	c.theirEndpoint = doc.Endpoint()
	c.theirLabel = req.Label
	myDID := c.myDID
	c.lk.Unlock()
	try.To(c.setState(RequestReceived))

	return c.sendResponse(ctx, a, myDID, theirDID, req.ThreadID())
}

func (c *Connection) sendResponse(ctx context.Context, a *cloud.Agent, myDID, theirDID *ssi.DID, thid string) (err error) {
	res := didexchange.NewResponse(thid,
		didexchange.NewConnection(myDID.Did(), myDID.VerKey(), a.Endpoint))
	try.To(signature.Sign(res, myDID))

	pipe := try.To1(c.Pipe())
	if err := a.Send(ctx, pipe, c.endpoint(), res); err != nil {
		return cxserr.Wrap(cxserr.ConnectionError, err, "send response")
	}
	return c.setState(Connected)
}

func (c *Connection) handleResponse(ctx context.Context, a *cloud.Agent, res *didexchange.Response, senderVK string) (err error) {
	defer err2.Handle(&err, "connection response")

	if c.role != Invitee {
		return cxserr.State("inviter cannot handle a connection response")
	}
	try.To(c.checkState(RequestSent))
	if res.ThreadID() != c.ThreadID() {
		return cxserr.New(cxserr.InvalidParam,
			"response to unknown request %s", res.ThreadID())
	}
	signer := try.To1(signature.Verify(res))
	if signer != c.invitation.RecipientKeys[0] {
		return cxserr.New(cxserr.CryptoError, "response not signed by invitation key")
	}
	try.To(res.Connection.Validate())
	doc := res.Connection.DIDDoc
	if senderVK != doc.VerKey() {
		return cxserr.New(cxserr.CryptoError, "response sender is not the DID owner")
	}
	theirDID := try.To1(a.OutDID(doc.VerKey()))

	c.lk.Lock()
	c.theirDID = theirDID
	c.theirEndpoint = doc.Endpoint()
	c.lk.Unlock()
	try.To(c.setState(ResponseReceived))

	pipe := try.To1(c.Pipe())
	ack := common.NewAck(pltype.AriesConnectionAck, res.ThreadID())
	if err := a.Send(ctx, pipe, c.endpoint(), ack); err != nil {
		return cxserr.Wrap(cxserr.ConnectionError, err, "send ack")
	}
	return c.setState(Connected)
}

func (c *Connection) endpoint() string {
	c.lk.RLock()
	defer c.lk.RUnlock()
	return c.theirEndpoint
}

// Send auth-crypts the protocol message to the other end. The connection
// must be connected.
func (c *Connection) Send(ctx context.Context, a *cloud.Agent, msg didcomm.MessageHdr) (err error) {
	defer err2.Handle(&err, "connection %s send", c.sourceID)

	try.To(c.CheckSend())
	pipe := try.To1(c.Pipe())
	if err := a.Send(ctx, pipe, c.endpoint(), msg); err != nil {
		return cxserr.Wrap(cxserr.ConnectionError, err, "send")
	}
	return nil
}

// SendMessage sends the basic message and returns its ID.
func (c *Connection) SendMessage(ctx context.Context, a *cloud.Agent, content string) (id string, err error) {
	c.op.Lock()
	defer c.op.Unlock()
	if c.isReleased() {
		return "", ErrReleased
	}
	msg := basicmessage.NewBasicmessage(content)
	if err := c.Send(ctx, a, msg); err != nil {
		return "", err
	}
	return msg.ID, nil
}
