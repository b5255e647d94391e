package wiki

import (
	"encoding/json"
	"fmt"
)

// apiResponse covers the subset of a formatversion=2 query response we read.
type apiResponse struct {
	Error    *apiError         `json:"error"`
	Continue map[string]string `json:"continue"`
	Query    struct {
		Pages  []apiPage `json:"pages"`
		Search []struct {
			Title string `json:"title"`
		} `json:"search"`
	} `json:"query"`
}

type apiError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("api error %s: %s", e.Code, e.Info)
}

type apiPage struct {
	Title        string            `json:"title"`
	Missing      bool              `json:"missing"`
	Invalid      bool              `json:"invalid"`
	Redirect     bool              `json:"redirect"`
	Extract      string            `json:"extract"`
	FullURL      string            `json:"fullurl"`
	CanonicalURL string            `json:"canonicalurl"`
	PageProps    map[string]string `json:"pageprops"`
	Revisions    []struct {
		RevID int64 `json:"revid"`
	} `json:"revisions"`
	Links []apiLink `json:"links"`
}

type apiLink struct {
	NS    int    `json:"ns"`
	Title string `json:"title"`
}

func decodeResponse(body []byte) (apiResponse, error) {
	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return apiResponse{}, fmt.Errorf("decode api response: %w", err)
	}
	if resp.Error != nil {
		return apiResponse{}, resp.Error
	}
	return resp, nil
}

func (p apiPage) disambiguation() bool {
	_, ok := p.PageProps["disambiguation"]
	return ok
}

func (p apiPage) url() string {
	if p.CanonicalURL != "" {
		return p.CanonicalURL
	}
	return p.FullURL
}
