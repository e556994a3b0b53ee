package protocol

// Success is the reply to SUBSCRIBE and SEND_TICK.
type Success struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// CommandOutcome is one element of the RUN_COMMAND reply array.
type CommandOutcome struct {
	Success    bool   `json:"success"`
	ParseError bool   `json:"parse_error,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Version is the GET_VERSION reply.
type Version struct {
	Major                int    `json:"major"`
	Minor                int    `json:"minor"`
	Patch                int    `json:"patch"`
	HumanReadable        string `json:"human_readable"`
	LoadedConfigFileName string `json:"loaded_config_file_name"`
}

// ChangeEvent decodes the "change" field shared by most event payloads.
type ChangeEvent struct {
	Change string `json:"change"`
}
