package synergy

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/Yubo-Cao/grade-dashboard/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

// submitForm performs the first form of a page the way a browser's
// auto-submit would: resolve the action against base, carry every input's
// name/value pair, follow redirects. Returns the final response.
func submitForm(ctx context.Context, client *resty.Client, form htmlutil.Form, base *url.URL) (*resty.Response, error) {
	action, err := base.Parse(form.Action)
	if err != nil {
		return nil, fmt.Errorf("%w: bad form action %q", ErrMalformedPage, form.Action)
	}

	slog.DebugContext(ctx, "submitting form", "method", form.Method, "action", action.String())

	req := client.R().SetContext(ctx)
	switch form.Method {
	case http.MethodPost:
		req.SetFormDataFromValues(form.Values)
	default:
		req.SetQueryParamsFromValues(form.Values)
	}
	return req.Execute(form.Method, action.String())
}

// finalURL is where the response actually came from after redirects.
func finalURL(res *resty.Response) *url.URL {
	if res.RawResponse != nil && res.RawResponse.Request != nil {
		return res.RawResponse.Request.URL
	}
	u, _ := url.Parse(res.Request.URL)
	return u
}

func parseDocument(res *resty.Response) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
}
