package generate

import (
	"net/url"
	"strings"

	"github.com/TobiSchelling/BrandLens/internal/database"
)

// questionTemplates are keyed by language code. Placeholders: {product},
// {category}, {country}, {region}.
var questionTemplates = map[string][]string{
	"en": {
		"Who offers the best {category} for {product} in {region}?",
		"Which companies sell {product} with strong {category} in {region}?",
		"Who is the leading provider of {product} in {country}?",
		"Where can I buy {product} in {region}?",
		"Which {product} provider in {region} is best for {category}?",
		"Who sells affordable {product} in {country}?",
		"What are the top-rated {product} companies in {region} for {category}?",
		"Which {product} vendors in {country} do experts recommend?",
		"Who provides {category} services for {product} users in {region}?",
		"Which company in {region} offers {product} with good {category}?",
	},
	"de": {
		"Wer bietet die beste {category} für {product} in {region} an?",
		"Welche Firmen verkaufen {product} mit guter {category} in {region}?",
		"Wer ist der führende Anbieter für {product} in {country}?",
		"Wo kann ich {product} in {region} kaufen?",
		"Welcher {product}-Anbieter in {region} ist am besten für {category}?",
		"Wer verkauft günstige {product} in {country}?",
		"Welche {product}-Unternehmen in {region} sind für {category} am besten bewertet?",
		"Welche {product}-Anbieter in {country} empfehlen Experten?",
		"Wer bietet {category} für {product}-Nutzer in {region} an?",
		"Welches Unternehmen in {region} bietet {product} mit guter {category}?",
	},
	"fr": {
		"Qui propose la meilleure offre {category} pour {product} en {region} ?",
		"Quelles entreprises vendent {product} avec un bon {category} en {region} ?",
		"Qui est le principal fournisseur de {product} en {country} ?",
		"Où acheter {product} en {region} ?",
		"Quel fournisseur de {product} en {region} est le meilleur pour {category} ?",
		"Qui vend {product} à bon prix en {country} ?",
		"Quelles sont les entreprises {product} les mieux notées en {region} pour {category} ?",
		"Quels fournisseurs de {product} en {country} les experts recommandent-ils ?",
		"Qui fournit des services {category} aux utilisateurs de {product} en {region} ?",
		"Quelle entreprise en {region} propose {product} avec un bon {category} ?",
	},
	"es": {
		"¿Quién ofrece el mejor {category} para {product} en {region}?",
		"¿Qué empresas venden {product} con buen {category} en {region}?",
		"¿Quién es el proveedor líder de {product} en {country}?",
		"¿Dónde puedo comprar {product} en {region}?",
		"¿Qué proveedor de {product} en {region} es mejor para {category}?",
		"¿Quién vende {product} asequible en {country}?",
		"¿Cuáles son las empresas de {product} mejor valoradas en {region} para {category}?",
		"¿Qué proveedores de {product} en {country} recomiendan los expertos?",
		"¿Quién ofrece servicios de {category} para usuarios de {product} en {region}?",
		"¿Qué empresa en {region} ofrece {product} con buen {category}?",
	},
}

// templateQuestions returns n template questions starting at template offset.
// Templates cycle when n exceeds the language's template count.
func templateQuestions(category string, in UserInput, n, offset int) []string {
	if n <= 0 {
		return nil
	}
	templates, ok := questionTemplates[strings.ToLower(in.Language)]
	if !ok {
		templates = questionTemplates["en"]
	}

	r := strings.NewReplacer(
		"{product}", ProductName(in.WebsiteURL),
		"{category}", strings.ToLower(category),
		"{country}", in.Country,
		"{region}", in.Locale(),
	)

	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, r.Replace(templates[(offset+i)%len(templates)]))
	}
	return out
}

// ProductName derives a product label from a website's domain:
// https://www.acme-tools.com → "acme tools".
func ProductName(websiteURL string) string {
	raw := strings.TrimSpace(websiteURL)
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return "products"
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	label, _, _ := strings.Cut(host, ".")
	label = strings.NewReplacer("-", " ", "_", " ").Replace(label)
	if label == "" {
		return "products"
	}
	return label
}

var (
	highIntent   = []string{"buy", "purchase", "price", "pricing", "cost", "cheap", "affordable", "best", "where", "order", "hire", "who sells", "who offers"}
	mediumIntent = []string{"compare", "comparison", "vs", "versus", "which", "alternative", "difference", "review", "recommend"}
)

// ClassifyIntent grades a question's purchase intent.
func ClassifyIntent(question string) string {
	q := " " + strings.ToLower(question) + " "
	q = strings.NewReplacer("?", " ", ",", " ", ".", " ", "¿", " ").Replace(q)
	for _, kw := range highIntent {
		if strings.Contains(q, " "+kw+" ") {
			return database.IntentHigh
		}
	}
	for _, kw := range mediumIntent {
		if strings.Contains(q, " "+kw+" ") {
			return database.IntentMedium
		}
	}
	return database.IntentLow
}
