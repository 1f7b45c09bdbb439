package protocol

// SUBSCRIBE (client -> server). First message on the observer WS connection;
// may be re-sent to change the filter.
type SubscribeMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	Machines        []uint32 `json:"machines,omitempty"` // empty means all
	EveryTicks      int      `json:"every_ticks,omitempty"`
}

// HTTP response for GET /v1/observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string         `json:"protocol_version"`
	FactoryID       string         `json:"factory_id"`
	Tick            uint64         `json:"tick"`
	Params          FactoryParams  `json:"params"`
	Catalogs        CatalogDigests `json:"catalogs"`
	ItemPalette     []string       `json:"item_palette"`
	Machines        []MachineState `json:"machines"`
}

type FactoryParams struct {
	TickRateHz         int `json:"tick_rate_hz"`
	Workers            int `json:"workers"`
	SnapshotEveryTicks int `json:"snapshot_every_ticks"`
	StatusEveryTicks   int `json:"status_every_ticks"`
}

type CatalogDigests struct {
	Items    string `json:"items"`
	Recipes  string `json:"recipes"`
	Machines string `json:"machines"`
}

// STATUS (server -> client).
type StatusMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	Tick            uint64         `json:"tick"`
	Transfers       int            `json:"transfers"`
	Warnings        int            `json:"warnings"`
	Digest          string         `json:"digest"`
	Machines        []MachineState `json:"machines"`
}

type MachineState struct {
	ID              uint32     `json:"id"`
	Template        string     `json:"template"`
	Recipe          string     `json:"recipe,omitempty"`
	Processing      bool       `json:"processing"`
	Disabled        bool       `json:"disabled,omitempty"`
	Tags            []string   `json:"tags"`
	PercentComplete float64    `json:"percent_complete"`
	Bins            []BinState `json:"bins,omitempty"`
	Stored          float64    `json:"stored"`
}

type BinState struct {
	Props    string  `json:"props"`
	Current  float64 `json:"current"`
	Capacity float64 `json:"capacity"`
}

// COMMAND (client -> server, POST /v1/commands). Op is one of CREATE,
// ASSIGN_RECIPE, CONNECT, DESTROY, SET_DISABLED, INJECT.
type CommandMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	ReqID           string  `json:"req_id,omitempty"`
	Op              string  `json:"op"`
	Machine         uint32  `json:"machine,omitempty"`
	Target          uint32  `json:"target,omitempty"`
	Template        string  `json:"template,omitempty"`
	Recipe          string  `json:"recipe,omitempty"`
	Item            string  `json:"item,omitempty"`
	Quantity        float64 `json:"quantity,omitempty"`
	Disabled        bool    `json:"disabled,omitempty"`
}

// COMMAND_RESULT (server -> client).
type CommandResultMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id,omitempty"`
	OK              bool   `json:"ok"`
	Machine         uint32 `json:"machine,omitempty"`
	Tick            uint64 `json:"tick"`
	Code            string `json:"code,omitempty"`
	Message         string `json:"message,omitempty"`
}
