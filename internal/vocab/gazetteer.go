package vocab

// defaultRegions is the static gazetteer of country, state, city and
// business-region names consulted by the region detector. Entries are
// stored normalized (lower case, single spaces).
var defaultRegions = []string{
	// Compass and business regions
	"north", "south", "east", "west", "central",
	"northeast", "northwest", "southeast", "southwest", "midwest",
	"emea", "apac", "amer", "latam", "anz", "dach", "nordics", "benelux",
	"pacific", "atlantic",

	// Countries
	"usa", "united states", "us", "canada", "mexico", "brazil", "argentina",
	"chile", "colombia", "peru", "uk", "united kingdom", "ireland", "france",
	"germany", "spain", "italy", "portugal", "netherlands", "belgium",
	"switzerland", "austria", "poland", "sweden", "norway", "denmark",
	"finland", "russia", "turkey", "egypt", "south africa", "nigeria",
	"kenya", "india", "china", "japan", "south korea", "singapore",
	"malaysia", "indonesia", "thailand", "vietnam", "philippines",
	"australia", "new zealand", "uae", "saudi arabia", "israel",

	// US states
	"alabama", "alaska", "arizona", "arkansas", "california", "colorado",
	"connecticut", "delaware", "florida", "georgia", "hawaii", "idaho",
	"illinois", "indiana", "iowa", "kansas", "kentucky", "louisiana",
	"maine", "maryland", "massachusetts", "michigan", "minnesota",
	"mississippi", "missouri", "montana", "nebraska", "nevada",
	"new hampshire", "new jersey", "new mexico", "new york",
	"north carolina", "north dakota", "ohio", "oklahoma", "oregon",
	"pennsylvania", "rhode island", "south carolina", "south dakota",
	"tennessee", "texas", "utah", "vermont", "virginia", "washington",
	"west virginia", "wisconsin", "wyoming",

	// Major cities
	"new york city", "los angeles", "chicago", "houston", "phoenix",
	"philadelphia", "san antonio", "san diego", "dallas", "san francisco",
	"seattle", "boston", "miami", "atlanta", "denver", "toronto",
	"vancouver", "montreal", "london", "manchester", "paris", "berlin",
	"munich", "hamburg", "madrid", "barcelona", "rome", "milan",
	"amsterdam", "brussels", "zurich", "vienna", "stockholm", "oslo",
	"copenhagen", "helsinki", "dublin", "lisbon", "warsaw", "prague",
	"moscow", "istanbul", "dubai", "mumbai", "delhi", "bangalore",
	"chennai", "kolkata", "beijing", "shanghai", "shenzhen", "hong kong",
	"tokyo", "osaka", "seoul", "sydney", "melbourne", "auckland",
	"sao paulo", "rio de janeiro", "buenos aires", "mexico city",
	"johannesburg", "cairo", "lagos", "nairobi",
}
