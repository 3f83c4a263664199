package headhunter

import (
	"context"
	"fmt"
	"net/url"
	"reflect"
	"strconv"

	"github.com/mitchellh/mapstructure"

	"github.com/spigell/job-matcher/internal/listing"
	"github.com/spigell/job-matcher/internal/sources"
)

const (
	SearchPath = "/vacancies"
)

type SearchParams struct {
	Text string `yaml:"text"`
	// hhparam is custom tag for reflect. Please see below.
	Areas       []int    `hhparam:"area" mapstructure:"areas"`
	OrderBy     string   `yaml:"order_by" mapstructure:"order-by"`
	SearchField string   `yaml:"search_field" mapstructure:"search-field"`
	Schedules   []string `hhparam:"schedule" mapstructure:"schedules"`
	Employment  []string `hhparam:"employment" mapstructure:"employment"`
	PerPage     string   `yaml:"per_page" mapstructure:"-"`
	Experience  string   `yaml:"experience" mapstructure:"experience"`
	Period      uint     `yaml:"period" mapstructure:"period"`
}

// employmentIDs maps job type preferences onto hh.ru employment ids.
var employmentIDs = map[string]string{
	listing.FullTime:   "full",
	listing.PartTime:   "part",
	listing.Contract:   "project",
	listing.Internship: "probation",
}

// Search returns up to limit vacancies matching params.
func (c *Client) Search(ctx context.Context, params SearchParams, limit int) ([]*Vacancy, error) {
	var vacancies []*Vacancy

	// Request as many per page as needed, capped at the API maximum.
	perPage := maxPerPage
	if limit > 0 && limit < perPage {
		perPage = limit
	}
	params.PerPage = strconv.Itoa(perPage)

	q := buildParams(&params)
	apiURLSearch := fmt.Sprintf("%s%s", c.APIURL, SearchPath)

	items, err := c.GetItems(ctx, apiURLSearch, q, limit)
	if err != nil {
		return nil, err
	}

	cfg := &mapstructure.DecoderConfig{
		Metadata:         nil,
		Result:           &vacancies,
		TagName:          "json",
		WeaklyTypedInput: true,
	}
	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return nil, sources.Unavailable(c.source, err)
	}
	if err := decoder.Decode(items); err != nil {
		return nil, sources.Malformed(c.source, err)
	}

	return vacancies, nil
}

func buildParams(params *SearchParams) url.Values {
	q := url.Values{}
	fields := reflect.VisibleFields(reflect.TypeOf(*params))
	for _, field := range fields {
		// Our custom tag is using here.
		key := field.Tag.Get("hhparam")
		if key == "" {
			// Failover to default tag if our tag do not exist.
			key = field.Tag.Get("yaml")
		}
		kind := field.Type.Kind()
		switch kind {
		case reflect.Slice:

			s := reflect.ValueOf(params).Elem().Field(field.Index[0]).Interface()
			switch v := s.(type) {
			case []int:
				for _, value := range v {
					q.Add(key, strconv.Itoa(value))
				}

			case []string:
				for _, value := range v {
					q.Add(key, value)
				}
			}

		default:
			value := fmt.Sprintf("%v", reflect.ValueOf(params).Elem().Field(field.Index[0]).Interface())
			if value != "" && value != "0" {
				q.Set(key, value)
			}
		}
	}

	return q
}
