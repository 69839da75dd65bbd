// Package paymentproto implements the BIP-70 PaymentRequest/Payment/
// PaymentACK wire messages (spec.md §6, §4.6 step 4) against
// google.golang.org/protobuf/encoding/protowire directly, rather than
// through protoc-generated bindings — no toolchain invocation happens
// anywhere in this module. paymentrequest.proto documents the same
// message shapes for reference.
package paymentproto

import (
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/airbitz-style/walletcore/internal/walleterr"
)

// Output is one payment destination: an amount plus its output script.
type Output struct {
	Amount uint64
	Script []byte
}

func (o Output) marshalAppend(b []byte) []byte {
	if o.Amount != 0 {
		b = protowire.AppendTag(b, 1, protowire.VarintType)
		b = protowire.AppendVarint(b, o.Amount)
	}
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendBytes(b, o.Script)
	return b
}

func unmarshalOutput(data []byte) (Output, error) {
	var out Output
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return Output{}, walleterr.New(walleterr.KindCorrupt, "malformed Output tag")
		}
		data = data[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return Output{}, walleterr.New(walleterr.KindCorrupt, "malformed Output.amount")
			}
			out.Amount = v
			data = data[n:]
		case 2:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return Output{}, walleterr.New(walleterr.KindCorrupt, "malformed Output.script")
			}
			out.Script = append([]byte(nil), v...)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return Output{}, walleterr.New(walleterr.KindCorrupt, "malformed Output field")
			}
			data = data[n:]
		}
	}
	return out, nil
}

// PaymentDetails is the payload a PaymentRequest carries serialized in its
// serialized_payment_details field.
type PaymentDetails struct {
	Network      string
	Outputs      []Output
	Time         uint64
	Expires      uint64
	Memo         string
	PaymentURL   string
	MerchantData []byte
}

// Marshal encodes a PaymentDetails message.
func (d PaymentDetails) Marshal() []byte {
	var b []byte
	if d.Network != "" {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendString(b, d.Network)
	}
	for _, o := range d.Outputs {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, o.marshalAppend(nil))
	}
	b = protowire.AppendTag(b, 3, protowire.VarintType)
	b = protowire.AppendVarint(b, d.Time)
	if d.Expires != 0 {
		b = protowire.AppendTag(b, 4, protowire.VarintType)
		b = protowire.AppendVarint(b, d.Expires)
	}
	if d.Memo != "" {
		b = protowire.AppendTag(b, 5, protowire.BytesType)
		b = protowire.AppendString(b, d.Memo)
	}
	if d.PaymentURL != "" {
		b = protowire.AppendTag(b, 6, protowire.BytesType)
		b = protowire.AppendString(b, d.PaymentURL)
	}
	if len(d.MerchantData) > 0 {
		b = protowire.AppendTag(b, 7, protowire.BytesType)
		b = protowire.AppendBytes(b, d.MerchantData)
	}
	return b
}

// UnmarshalPaymentDetails decodes a PaymentDetails message.
func UnmarshalPaymentDetails(data []byte) (PaymentDetails, error) {
	var d PaymentDetails
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return PaymentDetails{}, walleterr.New(walleterr.KindCorrupt, "malformed PaymentDetails tag")
		}
		data = data[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return PaymentDetails{}, walleterr.New(walleterr.KindCorrupt, "malformed PaymentDetails.network")
			}
			d.Network = v
			data = data[n:]
		case 2:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return PaymentDetails{}, walleterr.New(walleterr.KindCorrupt, "malformed PaymentDetails.outputs")
			}
			out, err := unmarshalOutput(v)
			if err != nil {
				return PaymentDetails{}, err
			}
			d.Outputs = append(d.Outputs, out)
			data = data[n:]
		case 3:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return PaymentDetails{}, walleterr.New(walleterr.KindCorrupt, "malformed PaymentDetails.time")
			}
			d.Time = v
			data = data[n:]
		case 4:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return PaymentDetails{}, walleterr.New(walleterr.KindCorrupt, "malformed PaymentDetails.expires")
			}
			d.Expires = v
			data = data[n:]
		case 5:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return PaymentDetails{}, walleterr.New(walleterr.KindCorrupt, "malformed PaymentDetails.memo")
			}
			d.Memo = v
			data = data[n:]
		case 6:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return PaymentDetails{}, walleterr.New(walleterr.KindCorrupt, "malformed PaymentDetails.payment_url")
			}
			d.PaymentURL = v
			data = data[n:]
		case 7:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return PaymentDetails{}, walleterr.New(walleterr.KindCorrupt, "malformed PaymentDetails.merchant_data")
			}
			d.MerchantData = append([]byte(nil), v...)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return PaymentDetails{}, walleterr.New(walleterr.KindCorrupt, "malformed PaymentDetails field")
			}
			data = data[n:]
		}
	}
	if len(d.Outputs) == 0 {
		return PaymentDetails{}, walleterr.New(walleterr.KindCorrupt, "PaymentDetails missing outputs")
	}
	return d, nil
}

// PaymentRequest is the merchant-signed envelope carrying a serialized
// PaymentDetails.
type PaymentRequest struct {
	PaymentDetailsVersion    uint32
	PKIType                  string
	PKIData                  []byte
	SerializedPaymentDetails []byte
	Signature                []byte
}

func (r PaymentRequest) Marshal() []byte {
	var b []byte
	if r.PaymentDetailsVersion != 0 {
		b = protowire.AppendTag(b, 1, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(r.PaymentDetailsVersion))
	}
	if r.PKIType != "" {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendString(b, r.PKIType)
	}
	if len(r.PKIData) > 0 {
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendBytes(b, r.PKIData)
	}
	b = protowire.AppendTag(b, 4, protowire.BytesType)
	b = protowire.AppendBytes(b, r.SerializedPaymentDetails)
	if len(r.Signature) > 0 {
		b = protowire.AppendTag(b, 5, protowire.BytesType)
		b = protowire.AppendBytes(b, r.Signature)
	}
	return b
}

func UnmarshalPaymentRequest(data []byte) (PaymentRequest, error) {
	var r PaymentRequest
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return PaymentRequest{}, walleterr.New(walleterr.KindCorrupt, "malformed PaymentRequest tag")
		}
		data = data[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return PaymentRequest{}, walleterr.New(walleterr.KindCorrupt, "malformed PaymentRequest.payment_details_version")
			}
			r.PaymentDetailsVersion = uint32(v)
			data = data[n:]
		case 2:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return PaymentRequest{}, walleterr.New(walleterr.KindCorrupt, "malformed PaymentRequest.pki_type")
			}
			r.PKIType = v
			data = data[n:]
		case 3:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return PaymentRequest{}, walleterr.New(walleterr.KindCorrupt, "malformed PaymentRequest.pki_data")
			}
			r.PKIData = append([]byte(nil), v...)
			data = data[n:]
		case 4:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return PaymentRequest{}, walleterr.New(walleterr.KindCorrupt, "malformed PaymentRequest.serialized_payment_details")
			}
			r.SerializedPaymentDetails = append([]byte(nil), v...)
			data = data[n:]
		case 5:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return PaymentRequest{}, walleterr.New(walleterr.KindCorrupt, "malformed PaymentRequest.signature")
			}
			r.Signature = append([]byte(nil), v...)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return PaymentRequest{}, walleterr.New(walleterr.KindCorrupt, "malformed PaymentRequest field")
			}
			data = data[n:]
		}
	}
	if len(r.SerializedPaymentDetails) == 0 {
		return PaymentRequest{}, walleterr.New(walleterr.KindCorrupt, "PaymentRequest missing serialized_payment_details")
	}
	return r, nil
}

// Payment is the wallet's response to a PaymentRequest: the broadcast
// transaction(s) plus refund outputs (spec.md §4.6 step 4).
type Payment struct {
	MerchantData []byte
	Transactions [][]byte
	RefundTo     []Output
	Memo         string
}

func (p Payment) Marshal() []byte {
	var b []byte
	if len(p.MerchantData) > 0 {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, p.MerchantData)
	}
	for _, tx := range p.Transactions {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, tx)
	}
	for _, o := range p.RefundTo {
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendBytes(b, o.marshalAppend(nil))
	}
	if p.Memo != "" {
		b = protowire.AppendTag(b, 4, protowire.BytesType)
		b = protowire.AppendString(b, p.Memo)
	}
	return b
}

func UnmarshalPayment(data []byte) (Payment, error) {
	var p Payment
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return Payment{}, walleterr.New(walleterr.KindCorrupt, "malformed Payment tag")
		}
		data = data[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return Payment{}, walleterr.New(walleterr.KindCorrupt, "malformed Payment.merchant_data")
			}
			p.MerchantData = append([]byte(nil), v...)
			data = data[n:]
		case 2:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return Payment{}, walleterr.New(walleterr.KindCorrupt, "malformed Payment.transactions")
			}
			p.Transactions = append(p.Transactions, append([]byte(nil), v...))
			data = data[n:]
		case 3:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return Payment{}, walleterr.New(walleterr.KindCorrupt, "malformed Payment.refund_to")
			}
			out, err := unmarshalOutput(v)
			if err != nil {
				return Payment{}, err
			}
			p.RefundTo = append(p.RefundTo, out)
			data = data[n:]
		case 4:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return Payment{}, walleterr.New(walleterr.KindCorrupt, "malformed Payment.memo")
			}
			p.Memo = v
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return Payment{}, walleterr.New(walleterr.KindCorrupt, "malformed Payment field")
			}
			data = data[n:]
		}
	}
	return p, nil
}

// PaymentACK is the merchant's acknowledgement of a submitted Payment.
type PaymentACK struct {
	Payment Payment
	Memo    string
}

func (a PaymentACK) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendBytes(b, a.Payment.Marshal())
	if a.Memo != "" {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendString(b, a.Memo)
	}
	return b
}

func UnmarshalPaymentACK(data []byte) (PaymentACK, error) {
	var a PaymentACK
	var havePayment bool
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return PaymentACK{}, walleterr.New(walleterr.KindCorrupt, "malformed PaymentACK tag")
		}
		data = data[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return PaymentACK{}, walleterr.New(walleterr.KindCorrupt, "malformed PaymentACK.payment")
			}
			p, err := UnmarshalPayment(v)
			if err != nil {
				return PaymentACK{}, err
			}
			a.Payment = p
			havePayment = true
			data = data[n:]
		case 2:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return PaymentACK{}, walleterr.New(walleterr.KindCorrupt, "malformed PaymentACK.memo")
			}
			a.Memo = v
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return PaymentACK{}, walleterr.New(walleterr.KindCorrupt, "malformed PaymentACK field")
			}
			data = data[n:]
		}
	}
	if !havePayment {
		return PaymentACK{}, walleterr.New(walleterr.KindCorrupt, "PaymentACK missing required payment field")
	}
	return a, nil
}
