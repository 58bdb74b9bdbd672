package headhunter

import (
	"fmt"
	"net/url"
	"reflect"
	"strconv"

	"github.com/spigell/jobradar/internal/model"
)

const (
	SearchPath = "/vacancies"
)

var employmentIDs = map[model.EmploymentType]string{
	model.EmploymentFullTime:   "full",
	model.EmploymentPartTime:   "part",
	model.EmploymentContract:   "project",
	model.EmploymentTemporary:  "probation",
	model.EmploymentInternship: "volunteer",
}

type SearchParams struct {
	Text string `hhparam:"text"`
	// hhparam is custom tag for reflect. Please see below.
	Areas      []int    `hhparam:"area"`
	OrderBy    string   `hhparam:"order_by"`
	Schedules  []string `hhparam:"schedule"`
	Employment []string `hhparam:"employment"`
	PerPage    string   `hhparam:"per_page"`
	Page       int      `hhparam:"page"`
	Period     uint     `hhparam:"period"`
}

func buildParams(params *SearchParams) url.Values {
	q := url.Values{}
	fields := reflect.VisibleFields(reflect.TypeOf(*params))
	for _, field := range fields {
		key := field.Tag.Get("hhparam")
		if key == "" {
			continue
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
			// The first page is the API default.
			if value != "" && value != "0" {
				q.Set(key, value)
			}
		}
	}

	return q
}
