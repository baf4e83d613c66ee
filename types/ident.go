package types

// IdentInfo is the decoded hardware descriptor, retained on ident/info.
type IdentInfo struct {
	Model      string `json:"model"`
	Short      string `json:"short"`
	AudioWatts uint8  `json:"audio_w"`
	Charger    string `json:"charger"` // "1A" or "NONE"
	Sensor     string `json:"sensor"`
	BatProtect bool   `json:"bat_protect"`
	Storage    string `json:"storage"` // "SD", "FLASH", "UNK"
	CPU        string `json:"cpu"`
	Serial     uint32 `json:"serial"`
	Hex        string `json:"hex"` // 16 uppercase hex digits
}
