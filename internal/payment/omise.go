package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/omise/omise-go"
	"github.com/omise/omise-go/operations"
)

// Omise implements Provider with non-capturing card charges: the charge
// id is the authorization handle, capture and reversal settle it.
type Omise struct {
	client *omise.Client
}

// NewOmise builds a provider from the account keys.
func NewOmise(publicKey, secretKey string) (*Omise, error) {
	c, err := omise.NewClient(publicKey, secretKey)
	if err != nil {
		return nil, err
	}
	c.SetDebug(false)
	return &Omise{client: c}, nil
}

func (o *Omise) Authorize(ctx context.Context, req AuthRequest) (Authorization, error) {
	if err := ctx.Err(); err != nil {
		return Authorization{}, err
	}
	if req.Amount <= 0 || req.Currency == "" {
		return Authorization{}, errors.New("invalid charge params")
	}
	meta := make(map[string]interface{}, len(req.Metadata))
	for k, v := range req.Metadata {
		meta[k] = v
	}
	ch := &omise.Charge{}
	op := &operations.CreateCharge{
		Amount:      req.Amount,
		Currency:    req.Currency,
		Card:        req.Token,
		DontCapture: true,
		ReturnURI:   req.ReturnURI,
		Metadata:    meta,
	}
	if err := o.client.Do(ch, op); err != nil {
		return Authorization{}, err
	}
	if string(ch.Status) == "failed" {
		return Authorization{}, fmt.Errorf("charge %s failed: %s", ch.ID, failure(ch))
	}
	return Authorization{Handle: ch.ID, RedirectURI: ch.AuthorizeURI, Authorized: ch.Authorized}, nil
}

// Capture settles the charge. A charge that is already paid counts as
// captured so a retried pass does not fail.
func (o *Omise) Capture(ctx context.Context, handle string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ch := &omise.Charge{}
	err := o.client.Do(ch, &operations.CaptureCharge{ChargeID: handle})
	if err == nil {
		return nil
	}
	if cur, rerr := o.retrieve(handle); rerr == nil && cur.Paid {
		return nil
	}
	return err
}

// Cancel reverses an uncaptured charge. Already reversed charges are fine.
func (o *Omise) Cancel(ctx context.Context, handle string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ch := &omise.Charge{}
	err := o.client.Do(ch, &operations.ReverseCharge{ChargeID: handle})
	if err == nil {
		return nil
	}
	if cur, rerr := o.retrieve(handle); rerr == nil && cur.Reversed {
		return nil
	}
	return err
}

type incomingEvent struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

// Verify re-fetches the event from Omise by id, so a forged body cannot
// move a share.
func (o *Omise) Verify(ctx context.Context, body []byte) (*Notice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var inc incomingEvent
	if err := json.Unmarshal(body, &inc); err != nil || inc.ID == "" {
		return nil, errors.New("malformed notification")
	}
	ev := &omise.Event{}
	if err := o.client.Do(ev, &operations.RetrieveEvent{EventID: inc.ID}); err != nil {
		return nil, fmt.Errorf("retrieve event %s: %w", inc.ID, err)
	}
	if ev.Key != "charge.complete" {
		return nil, nil
	}
	raw, err := json.Marshal(ev.Data)
	if err != nil {
		return nil, err
	}
	var ch omise.Charge
	if err := json.Unmarshal(raw, &ch); err != nil {
		return nil, err
	}
	shareID, _ := ch.Metadata["share_id"].(string)
	return &Notice{
		Handle:     ch.ID,
		ShareID:    shareID,
		Authorized: ch.Authorized && string(ch.Status) != "failed",
		Failed:     string(ch.Status) == "failed",
		Reason:     failure(&ch),
	}, nil
}

func (o *Omise) retrieve(id string) (*omise.Charge, error) {
	ch := &omise.Charge{}
	if err := o.client.Do(ch, &operations.RetrieveCharge{ChargeID: id}); err != nil {
		return nil, err
	}
	return ch, nil
}

func failure(ch *omise.Charge) string {
	var fc, fm string
	if ch.FailureCode != nil {
		fc = *ch.FailureCode
	}
	if ch.FailureMessage != nil {
		fm = *ch.FailureMessage
	}
	if fc == "" && fm == "" {
		return ""
	}
	return fc + ": " + fm
}
