package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	"github.com/mailtrack/mailtrack/dynamodb"
	"github.com/mailtrack/mailtrack/event"
	"github.com/mailtrack/mailtrack/metrics"
)

const suppressedMessage = "Can't send email to this user. They are in the suppression list."

// pageResponse is the wire shape of a query result page. NextToken is null
// when the page is the last one.
type pageResponse struct {
	Items     []dynamodb.Item `json:"items"`
	NextToken *string         `json:"nextToken"`
}

// GetEvents serves GET /events. Results are newest-first; from, to, status,
// campaign, page_size and next_token narrow and page the query.
func (h *Handler) GetEvents(w http.ResponseWriter, r *http.Request) {
	spec := querySpec(r)

	switch {
	case spec.CampaignID != "":
		spec.Index = dynamodb.SelectCampaign
	case spec.Status != "":
		spec.Index = dynamodb.SelectStatus
	default:
		spec.Index = dynamodb.SelectAllEvents
	}

	h.servePage(w, r, spec)
}

// GetSuppressionList serves GET /suppression-list with the same pagination
// contract as GetEvents.
func (h *Handler) GetSuppressionList(w http.ResponseWriter, r *http.Request) {
	spec := querySpec(r)
	spec.Index = dynamodb.SelectSuppressions

	h.servePage(w, r, spec)
}

func (h *Handler) servePage(w http.ResponseWriter, r *http.Request, spec dynamodb.QuerySpec) {
	page, err := h.store.QueryEvents(r.Context(), spec)
	if err != nil {
		h.logger.Error("query failed", "error", err)
		writeError(w, http.StatusBadRequest, err.Error())

		return
	}

	if len(page.Items) == 0 {
		writeError(w, http.StatusNotFound, "No items found")

		return
	}

	resp := pageResponse{Items: page.Items}
	if page.HasMore {
		resp.NextToken = &page.NextCursor
	}

	writeJSON(w, http.StatusOK, resp)
}

// querySpec extracts the shared query parameters. Status values are stored
// uppercase, so the filter is uppercased to match.
func querySpec(r *http.Request) dynamodb.QuerySpec {
	q := r.URL.Query()

	spec := dynamodb.QuerySpec{
		Status:     event.Status(strings.ToUpper(q.Get("status"))),
		CampaignID: q.Get("campaign"),
		From:       q.Get("from"),
		To:         q.Get("to"),
		Cursor:     q.Get("next_token"),
	}

	if raw := q.Get("page_size"); raw != "" {
		if size, err := strconv.ParseInt(raw, 10, 32); err == nil && size > 0 {
			spec.PageSize = int32(size)
		}
	}

	return spec
}

// SendMail serves POST /mail. The body is a SES v2 SendEmail request; the
// send is refused when the first recipient is on the suppression list, and
// otherwise runs under credentials vended for the caller.
func (h *Handler) SendMail(w http.ResponseWriter, r *http.Request) {
	input, err := decodeSendInput(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())

		return
	}

	recipient := input.Destination.ToAddresses[0]

	suppressed, err := h.store.HasSuppression(r.Context(), recipient)
	if err != nil {
		h.logger.Error("suppression check failed", "recipient", recipient, "error", err)
		writeError(w, http.StatusBadRequest, err.Error())

		return
	}

	if suppressed {
		metrics.SendsBlockedTotal.Inc()
		h.logger.Info("send blocked by suppression list", "recipient", recipient)
		writeError(w, http.StatusBadRequest, suppressedMessage)

		return
	}

	c, err := h.vendor.Vend(r.Context(), r.Header.Get("Authorization"))
	if err != nil {
		h.logger.Error("credential vend failed", "error", err)
		writeError(w, http.StatusBadRequest, err.Error())

		return
	}

	result, err := h.sender.Send(r.Context(), c, input)
	if err != nil {
		h.logger.Error("send failed", "recipient", recipient, "error", err)
		writeError(w, http.StatusBadRequest, err.Error())

		return
	}

	// The upstream SES status is proxied as the response status.
	status := result.StatusCode
	if status == 0 {
		status = http.StatusOK
	}

	writeJSON(w, status, result)
}

// decodeSendInput decodes the request body as a SES v2 SendEmail request.
// The SDK input struct's field names match the wire keys, so the body
// unmarshals into it directly.
func decodeSendInput(r *http.Request) (*sesv2.SendEmailInput, error) {
	var input sesv2.SendEmailInput

	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		return nil, errors.New("request body is not a valid send request")
	}

	if input.Destination == nil || len(input.Destination.ToAddresses) == 0 || input.Destination.ToAddresses[0] == "" {
		return nil, errors.New("at least one recipient is required")
	}

	return &input, nil
}

// VerifySTS serves GET /verify-sts. It runs the credential chain end to end
// and reports only whether it succeeded; the credentials themselves are
// never returned to the caller.
func (h *Handler) VerifySTS(w http.ResponseWriter, r *http.Request) {
	if _, err := h.vendor.Vend(r.Context(), r.Header.Get("Authorization")); err != nil {
		h.logger.Error("credential verification failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())

		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
