package ledger

import (
	"context"
	"encoding/json"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/findy-network/findy-common-go/dto"
	"github.com/findy-network/findy-cxs/agent/cxserr"
	"github.com/findy-network/findy-cxs/agent/ssi"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
	"github.com/mr-tron/base58"
)

// Mem is an in-process ledger. Write requests must be signed by the
// identifier's NYM verkey, only a self registering NYM is signed with the new
// verkey.
type Mem struct {
	sync.RWMutex
	txns      []Txn
	nyms      map[string]int // dest -> seqNo
	schemas   map[string]int // dest|name|version -> seqNo
	claimDefs map[string]int // origin|ref|tag -> seqNo
}

func NewMem() *Mem {
	return &Mem{
		nyms:      make(map[string]int),
		schemas:   make(map[string]int),
		claimDefs: make(map[string]int),
	}
}

// LoadMem builds the ledger from the snapshot file written by Save. Missing
// file means an empty ledger.
func LoadMem(filename string) (m *Mem, err error) {
	defer err2.Handle(&err, "load ledger %s", filename)

	m = NewMem()
	data, err := os.ReadFile(filename)
	if os.IsNotExist(err) {
		return m, nil
	}
	try.To(err)
	var txns []Txn
	dto.FromGOB(data, &txns)
	for _, t := range txns {
		m.append(t)
	}
	glog.V(3).Infof("ledger loaded, %d txns", len(txns))
	return m, nil
}

func (m *Mem) Save(filename string) (err error) {
	defer err2.Handle(&err, "save ledger %s", filename)

	m.RLock()
	data := dto.ToGOB(m.txns)
	m.RUnlock()
	return os.WriteFile(filename, data, 0o600)
}

func (m *Mem) Len() int {
	m.RLock()
	defer m.RUnlock()
	return len(m.txns)
}

func schemaKey(dest, name, version string) string {
	return dest + "|" + name + "|" + version
}

func claimDefKey(origin string, ref int, tag string) string {
	return origin + "|" + strconv.Itoa(ref) + "|" + tag
}

// append adds the txn and indexes it. Caller must hold the lock.
func (m *Mem) append(t Txn) Txn {
	t.SeqNo = len(m.txns) + 1
	if t.TxnTime == 0 {
		t.TxnTime = time.Now().Unix()
	}
	m.txns = append(m.txns, t)
	op := t.Operation
	switch t.Type {
	case TxnNym:
		m.nyms[op.Dest] = t.SeqNo
	case TxnSchema:
		var sd SchemaData
		_ = json.Unmarshal(op.Data, &sd)
		m.schemas[schemaKey(t.Identifier, sd.Name, sd.Version)] = t.SeqNo
	case TxnClaimDef:
		m.claimDefs[claimDefKey(t.Identifier, op.Ref, op.Tag)] = t.SeqNo
	}
	return t
}

func (m *Mem) verKey(did string) (string, bool) {
	seqNo, ok := m.nyms[did]
	if !ok {
		return "", false
	}
	return m.txns[seqNo-1].Operation.VerKey, true
}

func (m *Mem) Submit(ctx context.Context, data []byte) (_ []byte, err error) {
	defer err2.Handle(&err, func(err error) error {
		return cxserr.Wrap(cxserr.LedgerError, err, "mem ledger submit")
	})

	if err := ctx.Err(); err != nil {
		return nil, cxserr.Wrap(cxserr.LedgerError, err, "timeout")
	}
	var req Request
	try.To(json.Unmarshal(data, &req))
	var op Operation
	try.To(json.Unmarshal(req.Operation, &op))

	glog.V(5).Infoln("ledger submit:", op.Type, req.Identifier)
	switch op.Type {
	case TxnNym, TxnSchema, TxnClaimDef:
		m.Lock()
		defer m.Unlock()
		if reason := m.checkWrite(&req, &op); reason != "" {
			return m.reject(req.ReqID, reason), nil
		}
		t := m.append(Txn{
			Type:       op.Type,
			Identifier: req.Identifier,
			Operation:  op,
		})
		return m.reply(req.ReqID, t, op.Data), nil
	case TxnGetNym, TxnGetSchem, TxnGetCDef, TxnGet:
		m.RLock()
		defer m.RUnlock()
		return m.read(req.ReqID, &op), nil
	default:
		return m.reject(req.ReqID, "unknown txn type "+op.Type), nil
	}
}

func (m *Mem) checkWrite(req *Request, op *Operation) (reason string) {
	vk, found := m.verKey(req.Identifier)
	if op.Type == TxnNym && op.Dest == req.Identifier {
		if found {
			return "NYM " + op.Dest + " exists"
		}
		vk, found = op.VerKey, true
	}
	if !found {
		return "unknown identifier " + req.Identifier
	}
	if reason = verify(vk, req); reason != "" {
		return reason
	}
	switch op.Type {
	case TxnNym:
		if _, exists := m.nyms[op.Dest]; exists {
			return "NYM " + op.Dest + " exists"
		}
		if _, err := ssi.NewOutDID(op.VerKey); err != nil {
			return "invalid verkey"
		}
	case TxnSchema:
		var sd SchemaData
		if err := json.Unmarshal(op.Data, &sd); err != nil || sd.Name == "" ||
			sd.Version == "" || len(sd.AttrNames) == 0 {
			return "invalid schema data"
		}
		if _, exists := m.schemas[schemaKey(req.Identifier, sd.Name, sd.Version)]; exists {
			return "schema " + sd.Name + " " + sd.Version + " exists"
		}
	case TxnClaimDef:
		if op.Ref <= 0 || op.Ref > len(m.txns) || m.txns[op.Ref-1].Type != TxnSchema {
			return "schema " + strconv.Itoa(op.Ref) + " not found"
		}
		if _, exists := m.claimDefs[claimDefKey(req.Identifier, op.Ref, op.Tag)]; exists {
			return "claim def exists"
		}
	}
	return ""
}

func verify(verKey string, req *Request) string {
	did, err := ssi.NewOutDID(verKey)
	if err != nil {
		return "invalid verkey"
	}
	sig, err := base58.Decode(req.Signature)
	if err != nil || len(sig) == 0 {
		return "missing signature"
	}
	if did.Verify(req.SignedData(), sig) != nil {
		return "invalid signature"
	}
	return ""
}

func (m *Mem) read(reqID uint64, op *Operation) []byte {
	seqNo := 0
	switch op.Type {
	case TxnGetNym:
		seqNo = m.nyms[op.Dest]
	case TxnGetSchem:
		var sd SchemaData
		_ = json.Unmarshal(op.Data, &sd)
		seqNo = m.schemas[schemaKey(op.Dest, sd.Name, sd.Version)]
	case TxnGetCDef:
		seqNo = m.claimDefs[claimDefKey(op.Origin, op.Ref, op.Tag)]
	case TxnGet:
		var n int
		_ = json.Unmarshal(op.Data, &n)
		if n > 0 && n <= len(m.txns) {
			seqNo = n
		}
	}
	if seqNo == 0 {
		return dto.ToJSONBytes(Reply{Op: OpReply, Result: &Result{
			ReqID: reqID, Type: op.Type,
		}})
	}
	t := m.txns[seqNo-1]
	data := t.Operation.Data
	if t.Type == TxnNym {
		data = dto.ToJSONBytes(NymData{
			Dest:   t.Operation.Dest,
			VerKey: t.Operation.VerKey,
			Alias:  t.Operation.Alias,
			Role:   t.Operation.Role,
		})
	}
	return m.reply(reqID, t, data)
}

func (m *Mem) reply(reqID uint64, t Txn, data json.RawMessage) []byte {
	return dto.ToJSONBytes(Reply{Op: OpReply, Result: &Result{
		ReqID:      reqID,
		Identifier: t.Identifier,
		Type:       t.Type,
		SeqNo:      t.SeqNo,
		TxnTime:    t.TxnTime,
		Dest:       t.Operation.Dest,
		Origin:     t.Identifier,
		Ref:        t.Operation.Ref,
		Tag:        t.Operation.Tag,
		Data:       data,
	}})
}

func (m *Mem) reject(reqID uint64, reason string) []byte {
	glog.V(3).Infoln("ledger reject:", reason)
	return dto.ToJSONBytes(Reply{Op: OpReject, ReqID: reqID, Reason: reason})
}
