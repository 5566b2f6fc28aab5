package govee

import "encoding/json"

type scanData struct {
	AccountTopic string `json:"account_topic"`
}

// BuildScanRequest encodes the multicast discovery probe Govee devices
// answer with a StateService-equivalent "scan" response on ResponsePort.
func BuildScanRequest() ([]byte, error) {
	return json.Marshal(envelope{Msg: message{Cmd: "scan", Data: scanData{AccountTopic: "reserve"}}})
}

// ScanResponse is the normalised shape of a Govee scan reply, whether it
// arrives wrapped in the usual msg envelope or as a bare data dict.
type ScanResponse struct {
	IP     string `json:"ip"`
	Device string `json:"device"`
	SKU    string `json:"sku"`
}

// ParseScanResponse decodes a discovery response. It accepts both the
// documented {"msg":{"cmd":"scan","data":{...}}} envelope and a bare data
// object, since real devices have been observed sending either (§4.5.1).
func ParseScanResponse(data []byte) (ScanResponse, bool) {
	var env struct {
		Msg struct {
			Cmd  string       `json:"cmd"`
			Data ScanResponse `json:"data"`
		} `json:"msg"`
	}
	if err := json.Unmarshal(data, &env); err == nil && env.Msg.Data.Device != "" {
		return env.Msg.Data, true
	}

	var bare ScanResponse
	if err := json.Unmarshal(data, &bare); err == nil && bare.Device != "" {
		return bare, true
	}
	return ScanResponse{}, false
}
