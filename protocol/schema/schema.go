/*
Package schema implements the ledger anchored metadata of the claims. Schema
is a named and versioned list of attribute names, and ClaimDef binds the
issuer's claim signing key to one schema. Both are created locally and get
their sequence numbers when they are committed to the ledger.
*/
package schema

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/findy-network/findy-common-go/dto"
	"github.com/findy-network/findy-cxs/agent/cloud"
	"github.com/findy-network/findy-cxs/agent/cxserr"
	"github.com/findy-network/findy-cxs/agent/ledger"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

type Schema struct {
	op sync.Mutex
	lk sync.RWMutex

	sourceID  string
	data      ledger.SchemaData
	submitter string
	seqNo     int
}

// New creates the local schema. The attributes are given as JSON array of
// strings, they must be unique and not empty.
func New(sourceID, name, version, attrsJSON string) (s *Schema, err error) {
	if name == "" {
		return nil, cxserr.Param(2, "schema name empty")
	}
	if version == "" {
		return nil, cxserr.Param(3, "schema version empty")
	}
	var attrs []string
	if err := json.Unmarshal([]byte(attrsJSON), &attrs); err != nil {
		return nil, cxserr.Wrap(cxserr.InvalidJSON, err, "schema attributes")
	}
	if err := checkAttrs(attrs); err != nil {
		return nil, err
	}
	return &Schema{
		sourceID: sourceID,
		data:     ledger.SchemaData{Name: name, Version: version, AttrNames: attrs},
	}, nil
}

func checkAttrs(attrs []string) error {
	if len(attrs) == 0 {
		return cxserr.Param(4, "schema has no attributes")
	}
	seen := make(map[string]struct{}, len(attrs))
	for _, a := range attrs {
		if a == "" {
			return cxserr.Param(4, "empty attribute name")
		}
		if _, ok := seen[a]; ok {
			return cxserr.Param(4, "duplicate attribute %s", a)
		}
		seen[a] = struct{}{}
	}
	return nil
}

// Get reads the schema from the ledger by its sequence number.
func Get(ctx context.Context, a *cloud.Agent, sourceID string, seqNo int, opts ledger.CacheOptions) (s *Schema, err error) {
	defer err2.Handle(&err, "get schema")

	ls := try.To1(a.Ledger.GetSchema(ctx, seqNo, opts))
	return &Schema{
		sourceID:  sourceID,
		data:      ls.SchemaData,
		submitter: ls.Dest,
		seqNo:     ls.SeqNo,
	}, nil
}

func (s *Schema) SourceID() string {
	return s.sourceID
}

func (s *Schema) Attrs() []string {
	s.lk.RLock()
	defer s.lk.RUnlock()
	return append([]string(nil), s.data.AttrNames...)
}

// SeqNo returns the sequence number which exists after the commit.
func (s *Schema) SeqNo() (int, error) {
	s.lk.RLock()
	defer s.lk.RUnlock()
	if s.seqNo == 0 {
		return 0, cxserr.New(cxserr.NoDataAvailable, "schema %s not committed", s.sourceID)
	}
	return s.seqNo, nil
}

// CheckCommit validates that the schema can be committed.
func (s *Schema) CheckCommit() error {
	s.lk.RLock()
	defer s.lk.RUnlock()
	if s.seqNo != 0 {
		return cxserr.State("schema %s already committed", s.sourceID)
	}
	return nil
}

// Commit writes the schema to the ledger with the root DID of the agent.
func (s *Schema) Commit(ctx context.Context, a *cloud.Agent) (seqNo int, err error) {
	defer err2.Handle(&err, "commit schema %s", s.sourceID)

	s.op.Lock()
	defer s.op.Unlock()
	try.To(s.CheckCommit())

	root := a.RootDID()
	seqNo = try.To1(a.Ledger.WriteSchema(ctx, root, s.data))

	s.lk.Lock()
	s.seqNo = seqNo
	s.submitter = root.Did()
	s.lk.Unlock()
	glog.V(1).Infof("schema %s:%s committed, seqNo %d", s.data.Name, s.data.Version, seqNo)
	return seqNo, nil
}

type schemaJSON struct {
	SourceID  string   `json:"source_id"`
	Name      string   `json:"name"`
	Version   string   `json:"version"`
	AttrNames []string `json:"attr_names"`
	Submitter string   `json:"submitter_did,omitempty"`
	SeqNo     int      `json:"seq_no,omitempty"`
}

// Serialize returns the JSON of the schema. It's also the data returned by
// the schema get.
func (s *Schema) Serialize() string {
	s.lk.RLock()
	defer s.lk.RUnlock()
	return dto.ToJSON(schemaJSON{
		SourceID:  s.sourceID,
		Name:      s.data.Name,
		Version:   s.data.Version,
		AttrNames: s.data.AttrNames,
		Submitter: s.submitter,
		SeqNo:     s.seqNo,
	})
}

func Deserialize(str string, n int) (s *Schema, err error) {
	var d schemaJSON
	if err := json.Unmarshal([]byte(str), &d); err != nil {
		return nil, cxserr.Wrap(cxserr.InvalidJSON, err, "schema")
	}
	if d.Name == "" || d.Version == "" || checkAttrs(d.AttrNames) != nil {
		return nil, cxserr.Param(n, "schema data incomplete")
	}
	return &Schema{
		sourceID:  d.SourceID,
		data:      ledger.SchemaData{Name: d.Name, Version: d.Version, AttrNames: d.AttrNames},
		submitter: d.Submitter,
		seqNo:     d.SeqNo,
	}, nil
}

// CheckValues validates that the claim values have exactly the attributes.
// N is the index of the parameter for the errors.
func CheckValues(attrs []string, values map[string]string, n int) error {
	if len(values) == 0 {
		return cxserr.Param(n, "no claim values")
	}
	known := make(map[string]struct{}, len(attrs))
	for _, a := range attrs {
		known[a] = struct{}{}
	}
	var unknown []string
	for k := range values {
		if _, ok := known[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return cxserr.Param(n, "unknown attributes %v", unknown)
	}
	for _, a := range attrs {
		if _, ok := values[a]; !ok {
			return cxserr.Param(n, "attribute %s missing", a)
		}
	}
	return nil
}
