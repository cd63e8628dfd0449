package markethours

import "time"

// NSE trading holidays by year, encoded as month*100 + day.
// Source: NSE India official holiday list; tentative dates follow the
// published calendar until the exchange confirms them.
var nseHolidays = map[int][]int{
	2026: {
		126,  // Republic Day
		217,  // Mahashivratri (tentative)
		314,  // Holi
		331,  // Id-ul-Fitr (Eid) (tentative)
		402,  // Ram Navami (tentative)
		406,  // Mahavir Jayanti
		410,  // Good Friday
		414,  // Dr. Ambedkar Jayanti
		501,  // Maharashtra Day
		607,  // Bakrid / Eid ul-Adha (tentative)
		706,  // Muharram (tentative)
		815,  // Independence Day
		816,  // Janmashtami (tentative)
		905,  // Milad-un-Nabi (tentative)
		1002, // Mahatma Gandhi Jayanti
		1020, // Dussehra
		1021, // Dussehra (tentative)
		1105, // Diwali / Lakshmi Puja (tentative)
		1106, // Diwali Balipratipada (tentative)
		1107, // Bhai Dooj (tentative)
		1119, // Guru Nanak Jayanti
		1225, // Christmas
	},
}

var holidaySet = map[int]map[int]bool{}

func init() {
	for year, days := range nseHolidays {
		set := make(map[int]bool, len(days))
		for _, md := range days {
			set[md] = true
		}
		holidaySet[year] = set
	}
}

// IsHoliday reports whether the date (in IST) is an NSE holiday. Years
// without a loaded calendar report no holidays.
func IsHoliday(t time.Time) bool {
	ist := t.In(IST)
	return holidaySet[ist.Year()][int(ist.Month())*100+ist.Day()]
}
