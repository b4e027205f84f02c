package i18n

import (
	"net/http"
	"os"
	"strings"
)

// Supported languages: English (en), Portuguese (pt), German (de), French (fr), Spanish (es)
var supported = map[string]map[string]string{
	"en": {
		"title":               "Price Watch",
		"signed_in_title":     "You are signed in",
		"signed_in_body":      "You can close this tab and return to the terminal.",
		"signed_out_title":    "Not signed in",
		"signed_out_body":     "Run pricewatch login to sign in.",
		"products":            "Monitored products",
		"session_expired":     "Your session expired. Please sign in again.",
		"service_unavailable": "The price service is unavailable right now. Try again in a moment.",
		"product_added":       "Product added",
		"product_removed":     "Product removed",
		"alert_created":       "Alert created",
		"no_products":         "You are not monitoring any products yet.",
		"telegram_connect":    "Open this link in Telegram to receive alerts",
		"telegram_linked":     "Telegram connected",
		"invalid_input":       "Invalid input",
		"not_found":           "Product not found",
		"signed_out":          "Signed out",
		"open_browser":        "Open this address in your browser to sign in",
		"price_changed":       "Price changed",
		"lowest":              "lowest",
	},
	"pt": {
		"title":               "Price Watch",
		"signed_in_title":     "Você entrou",
		"signed_in_body":      "Pode fechar esta aba e voltar ao terminal.",
		"signed_out_title":    "Sessão não iniciada",
		"signed_out_body":     "Execute pricewatch login para entrar.",
		"products":            "Produtos monitorados",
		"session_expired":     "Sua sessão expirou. Entre novamente.",
		"service_unavailable": "O serviço de preços está indisponível no momento. Tente novamente em instantes.",
		"product_added":       "Produto adicionado",
		"product_removed":     "Produto removido",
		"alert_created":       "Alerta criado",
		"no_products":         "Você ainda não monitora nenhum produto.",
		"telegram_connect":    "Abra este link no Telegram para receber alertas",
		"telegram_linked":     "Telegram conectado",
		"invalid_input":       "Entrada inválida",
		"not_found":           "Produto não encontrado",
		"signed_out":          "Sessão encerrada",
		"open_browser":        "Abra este endereço no navegador para entrar",
		"price_changed":       "Preço alterado",
		"lowest":              "menor",
	},
	"de": {
		"title":               "Price Watch",
		"signed_in_title":     "Sie sind angemeldet",
		"signed_in_body":      "Sie können diesen Tab schließen und zum Terminal zurückkehren.",
		"signed_out_title":    "Nicht angemeldet",
		"signed_out_body":     "Führen Sie pricewatch login aus, um sich anzumelden.",
		"products":            "Überwachte Produkte",
		"session_expired":     "Ihre Sitzung ist abgelaufen. Bitte melden Sie sich erneut an.",
		"service_unavailable": "Der Preisdienst ist gerade nicht erreichbar. Versuchen Sie es gleich noch einmal.",
		"product_added":       "Produkt hinzugefügt",
		"product_removed":     "Produkt entfernt",
		"alert_created":       "Alarm erstellt",
		"no_products":         "Sie überwachen noch keine Produkte.",
		"telegram_connect":    "Öffnen Sie diesen Link in Telegram, um Alarme zu erhalten",
		"telegram_linked":     "Telegram verbunden",
		"invalid_input":       "Ungültige Eingabe",
		"not_found":           "Produkt nicht gefunden",
		"signed_out":          "Abgemeldet",
		"open_browser":        "Öffnen Sie diese Adresse im Browser, um sich anzumelden",
		"price_changed":       "Preis geändert",
		"lowest":              "niedrigster",
	},
	"fr": {
		"title":               "Price Watch",
		"signed_in_title":     "Vous êtes connecté",
		"signed_in_body":      "Vous pouvez fermer cet onglet et revenir au terminal.",
		"signed_out_title":    "Non connecté",
		"signed_out_body":     "Lancez pricewatch login pour vous connecter.",
		"products":            "Produits suivis",
		"session_expired":     "Votre session a expiré. Veuillez vous reconnecter.",
		"service_unavailable": "Le service de prix est indisponible pour le moment. Réessayez dans un instant.",
		"product_added":       "Produit ajouté",
		"product_removed":     "Produit supprimé",
		"alert_created":       "Alerte créée",
		"no_products":         "Vous ne suivez encore aucun produit.",
		"telegram_connect":    "Ouvrez ce lien dans Telegram pour recevoir les alertes",
		"telegram_linked":     "Telegram connecté",
		"invalid_input":       "Saisie invalide",
		"not_found":           "Produit introuvable",
		"signed_out":          "Déconnecté",
		"open_browser":        "Ouvrez cette adresse dans votre navigateur pour vous connecter",
		"price_changed":       "Prix modifié",
		"lowest":              "plus bas",
	},
	"es": {
		"title":               "Price Watch",
		"signed_in_title":     "Has iniciado sesión",
		"signed_in_body":      "Puedes cerrar esta pestaña y volver a la terminal.",
		"signed_out_title":    "Sin sesión",
		"signed_out_body":     "Ejecuta pricewatch login para iniciar sesión.",
		"products":            "Productos monitorizados",
		"session_expired":     "Tu sesión ha caducado. Inicia sesión de nuevo.",
		"service_unavailable": "El servicio de precios no está disponible ahora. Inténtalo de nuevo en un momento.",
		"product_added":       "Producto añadido",
		"product_removed":     "Producto eliminado",
		"alert_created":       "Alerta creada",
		"no_products":         "Todavía no monitorizas ningún producto.",
		"telegram_connect":    "Abre este enlace en Telegram para recibir alertas",
		"telegram_linked":     "Telegram conectado",
		"invalid_input":       "Entrada no válida",
		"not_found":           "Producto no encontrado",
		"signed_out":          "Sesión cerrada",
		"open_browser":        "Abre esta dirección en tu navegador para iniciar sesión",
		"price_changed":       "Precio cambiado",
		"lowest":              "mínimo",
	},
}

func T(lang, key string) string {
	if m, ok := supported[lang]; ok {
		if v, ok := m[key]; ok {
			return v
		}
	}
	if v, ok := supported["en"][key]; ok {
		return v
	}
	return key
}

// Supported reports whether lang has its own message table.
func Supported(lang string) bool {
	_, ok := supported[lang]
	return ok
}

func DetectLang(r *http.Request) string {
	// order: query param -> cookie -> header -> default
	if v := r.URL.Query().Get("lang"); v != "" {
		return normalize(v)
	}
	if c, err := r.Cookie("lang"); err == nil && c != nil {
		return normalize(c.Value)
	}
	al := r.Header.Get("Accept-Language")
	if al != "" {
		for _, part := range strings.Split(al, ",") {
			code := normalize(strings.Split(part, ";")[0])
			if _, ok := supported[code]; ok {
				return code
			}
		}
	}
	return "en"
}

// FromEnv picks the language for console output: an explicit preference
// first, then the POSIX locale variables.
func FromEnv(preferred string) string {
	candidates := []string{preferred, os.Getenv("LC_ALL"), os.Getenv("LC_MESSAGES"), os.Getenv("LANG")}
	for _, c := range candidates {
		if c == "" || c == "C" || c == "POSIX" {
			continue
		}
		if code := normalize(c); Supported(code) {
			return code
		}
	}
	return "en"
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) >= 2 {
		s = s[:2]
	}
	return s
}
