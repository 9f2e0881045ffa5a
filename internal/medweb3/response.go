// internal/medweb3/response.go
package medweb3

import (
	"github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/blockchain"
)

// Response - единый формат ответа для CLI и других потребителей.
// Ожидаемые отказы дают Success=false с конкретным ErrorKind.
type Response struct {
	Success      bool            `json:"success"`
	Signature    string          `json:"signature,omitempty"`
	BatchAccount string          `json:"batchAccount,omitempty"`
	Data         interface{}     `json:"data,omitempty"`
	Error        string          `json:"error,omitempty"`
	ErrorKind    blockchain.Kind `json:"errorKind,omitempty"`
}

// NewResponse строит ответ из результата операции и ошибки
func NewResponse(data interface{}, err error) Response {
	if err != nil {
		return Response{
			Success:      false,
			Signature:    blockchain.SignatureOf(err),
			BatchAccount: blockchain.BatchAccountOf(err),
			Error:        err.Error(),
			ErrorKind:    blockchain.KindOf(err),
		}
	}

	resp := Response{Success: true, Data: data}
	switch v := data.(type) {
	case *CreateBatchResult:
		resp.Signature = v.Signature
		resp.BatchAccount = v.BatchAccount
	case *TransferResult:
		resp.Signature = v.Signature
		resp.BatchAccount = v.BatchAccount
	case *VerifyResult:
		resp.Signature = v.Signature
		resp.BatchAccount = v.BatchAccount
	case *AccountInfo:
		resp.BatchAccount = v.Address
	case *FundResult:
		resp.Signature = v.Signature
	}
	return resp
}
