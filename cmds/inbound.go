package cmds

import (
	"context"
	"fmt"
	"net"

	"github.com/findy-network/findy-cxs/agent/trans"
	"github.com/findy-network/findy-cxs/agent/utils"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

// Inbound is the HTTP endpoint of the agents which run in this process.
type Inbound struct {
	*trans.Server
	HostAddr string

	done chan struct{}
}

// StartInbound listens the address and serves the agent endpoints at
// HostAddr/service/{id}. Port 0 picks a free port.
func StartInbound(host string, port int, service string) (in *Inbound, err error) {
	defer err2.Handle(&err, "start inbound")

	l := try.To1(net.Listen("tcp", fmt.Sprintf("%s:%d", host, port)))
	in = &Inbound{
		Server:   trans.NewServer(service, utils.Version),
		HostAddr: "http://" + l.Addr().String(),
		done:     make(chan struct{}),
	}
	go func() {
		defer close(in.done)
		if err := in.Serve(l); err != nil {
			glog.Errorln("inbound server:", err)
		}
	}()
	return in, nil
}

// Endpoint is the endpoint URL of the agent.
func (in *Inbound) Endpoint(id string) string {
	return in.Server.Endpoint(in.HostAddr, id)
}

func (in *Inbound) Close(ctx context.Context) error {
	err := in.Shutdown(ctx)
	<-in.done
	return err
}
