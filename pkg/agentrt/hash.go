package agentrt

import "github.com/chaosbench/chaosbench/pkg/value"

// configHash computes the same digest over st's (parameters, custom
// actions, variables) as store.Store.HashState does over the
// coordinator's copy of the current scenario — the two must agree bit
// for bit, since the agent sends this value back in NextTask(hash) and
// the coordinator compares it against its own to detect a stale config.
func configHash(st PersistedState) uint64 {
	h := value.HashState()
	value.HashMap(h, st.Parameters.Global)
	value.HashMap(h, st.Parameters.Windows)
	value.HashMap(h, st.Parameters.Linux)
	value.HashMap(h, st.Variables.Global)
	value.HashMap(h, st.Variables.Windows)
	value.HashMap(h, st.Variables.Linux)
	for _, a := range st.CustomActions {
		value.Hash(h, value.Text(a.Name))
		value.Hash(h, value.Text(a.Action.String()))
		value.HashMap(h, a.Parameters)
	}
	return h.Sum64()
}
