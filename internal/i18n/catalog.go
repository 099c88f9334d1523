package i18n

var catalogs = map[string]map[string]string{
	"en": {
		"welcome_first_time": "🏠 Welcome to WH Bot!\n\nThis bot makes sure you do not miss new rental listings.\n\n" +
			"✅ You are subscribed to notifications. Use /stop to pause them and /start to resume.\n\n" +
			"Set your time zone with /tz (for example /tz Europe/Amsterdam) so dates show in your local time.",
		"welcome_back":           "🏠 Welcome back! Notifications are on.",
		"not_specified":          "Not specified",
		"toggled_subscribe_ok":   "✅ You have successfully subscribed to notifications!",
		"toggled_unsubscribe_ok": "⏹ You have unsubscribed from notifications.",
		"tracker_enabled":        "🛰️ Link tracking enabled.",
		"tracker_disabled":       "🛰️ Link tracking disabled. You will receive direct links.",
		"lang_changed":           "✅ Language changed to {lang_name}!",
		"lang_usage":             "🌐 Usage: /lang en | uk | nl",
		"tz_changed":             "🕒 Time zone set to {tz}.",
		"tz_invalid":             "🤔 Unknown time zone {tz}. Use an IANA name such as Europe/Amsterdam.",
		"tz_usage":               "🕒 Usage: /tz Europe/Amsterdam",
		"lang_en":                "🇬🇧 English",
		"lang_uk":                "🇺🇦 Українська",
		"lang_nl":                "🇳🇱 Nederlands",

		"new_listing_title":        "🏠 {postcode} {city}, {street} {houseNumber}",
		"new_listing_body":         "💰 Price: {base_price} €\n📅 Publication date: {publication_date}\n⏳ Valid until: {closing_date}",
		"view_listing_button":      "👀 View Details",
		"no_recent_listings":       "😕 No new listings in the last 3 days.",
		"listing_expires_in_days":  "⏳ Expires in {days} days.",
		"listing_expires_in_hours": "⏳ Expires in {hours} hours.",
		"listing_expires_today":    "🔥 Expires today!",
		"recent_header":            "📄 Recent listings ({count} in the last 3 days)",
		"closing_header":           "⏳ Open listings ({count}), closing soonest first",
		"no_open_listings":         "😕 No open listings right now.",

		"help_text": "🤖 WH Bot Help\n\n" +
			"/start - subscribe to notifications\n" +
			"/stop - unsubscribe\n" +
			"/recent - listings from the last 3 days\n" +
			"/recent closing - open listings by closing date\n" +
			"/tracker - toggle link tracking\n" +
			"/lang - change language\n" +
			"/tz - set your time zone\n\n" +
			"The bot checks for new listings every {interval}.",
		"unknown_command": "🤔 Unrecognized command. Send /help for the list of commands.",
	},
	"uk": {
		"welcome_first_time": "🏠 Вітаємо у WH Bot!\n\nЦей бот допоможе вам не пропустити нові оголошення про оренду.\n\n" +
			"✅ Ви підписані на сповіщення. Надішліть /stop, щоб призупинити їх, і /start, щоб відновити.\n\n" +
			"Встановіть свій часовий пояс командою /tz (наприклад /tz Europe/Kyiv), щоб бачити дати у місцевому часі.",
		"welcome_back":           "🏠 З поверненням! Сповіщення увімкнено.",
		"not_specified":          "Не вказано",
		"toggled_subscribe_ok":   "✅ Ви успішно підписались на сповіщення!",
		"toggled_unsubscribe_ok": "⏹ Ви відписались від сповіщень.",
		"tracker_enabled":        "🛰️ Трекінг посилань увімкнено.",
		"tracker_disabled":       "🛰️ Трекінг посилань вимкнено. Ви отримуватимете прямі посилання.",
		"lang_changed":           "✅ Мову змінено на {lang_name}!",
		"lang_usage":             "🌐 Використання: /lang en | uk | nl",
		"tz_changed":             "🕒 Часовий пояс встановлено: {tz}.",
		"tz_invalid":             "🤔 Невідомий часовий пояс {tz}. Використовуйте назву IANA, наприклад Europe/Kyiv.",
		"tz_usage":               "🕒 Використання: /tz Europe/Kyiv",

		"new_listing_title":        "🏠 {postcode} {city}, {street} {houseNumber}",
		"new_listing_body":         "💰 Ціна: {base_price} €\n📅 Дата публікації: {publication_date}\n⏳ Діє до: {closing_date}",
		"view_listing_button":      "👀 Переглянути деталі",
		"no_recent_listings":       "😕 За останні 3 дні не було нових оголошень.",
		"listing_expires_in_days":  "⏳ Закінчується через {days} дн.",
		"listing_expires_in_hours": "⏳ Закінчується через {hours} год.",
		"listing_expires_today":    "🔥 Закінчується сьогодні!",
		"recent_header":            "📄 Останні оголошення ({count} за 3 дні)",
		"closing_header":           "⏳ Відкриті оголошення ({count}), спершу ті, що закінчуються раніше",
		"no_open_listings":         "😕 Зараз немає відкритих оголошень.",

		"help_text": "🤖 Довідка по WH Bot\n\n" +
			"/start - підписатися на сповіщення\n" +
			"/stop - відписатися\n" +
			"/recent - оголошення за останні 3 дні\n" +
			"/recent closing - відкриті оголошення за датою закінчення\n" +
			"/tracker - увімкнути або вимкнути трекінг посилань\n" +
			"/lang - змінити мову\n" +
			"/tz - встановити часовий пояс\n\n" +
			"Бот перевіряє наявність нових оголошень кожні {interval}.",
		"unknown_command": "🤔 Незрозуміла команда. Надішліть /help, щоб побачити список команд.",
	},
	"nl": {
		"welcome_first_time": "🏠 Welkom bij WH Bot!\n\nDeze bot helpt je om geen nieuwe huuradvertenties te missen.\n\n" +
			"✅ Je bent geabonneerd op meldingen. Stuur /stop om ze te pauzeren en /start om te hervatten.\n\n" +
			"Stel je tijdzone in met /tz (bijvoorbeeld /tz Europe/Amsterdam) voor de juiste tijdweergave.",
		"welcome_back":           "🏠 Welkom terug! Meldingen staan aan.",
		"not_specified":          "Niet opgegeven",
		"toggled_subscribe_ok":   "✅ Je bent succesvol geabonneerd op meldingen!",
		"toggled_unsubscribe_ok": "⏹ Je hebt je afgemeld voor meldingen.",
		"tracker_enabled":        "🛰️ Link tracking ingeschakeld.",
		"tracker_disabled":       "🛰️ Link tracking uitgeschakeld. Je ontvangt directe links.",
		"lang_changed":           "✅ Taal gewijzigd naar {lang_name}!",
		"lang_usage":             "🌐 Gebruik: /lang en | uk | nl",
		"tz_changed":             "🕒 Tijdzone ingesteld op {tz}.",
		"tz_invalid":             "🤔 Onbekende tijdzone {tz}. Gebruik een IANA-naam zoals Europe/Amsterdam.",
		"tz_usage":               "🕒 Gebruik: /tz Europe/Amsterdam",

		"new_listing_title":        "🏠 {postcode} {city}, {street} {houseNumber}",
		"new_listing_body":         "💰 Prijs: {base_price} €\n📅 Publicatiedatum: {publication_date}\n⏳ Geldig tot: {closing_date}",
		"view_listing_button":      "👀 Bekijk Details",
		"no_recent_listings":       "😕 Geen nieuwe advertenties in de laatste 3 dagen.",
		"listing_expires_in_days":  "⏳ Verloopt over {days} dagen.",
		"listing_expires_in_hours": "⏳ Verloopt over {hours} uur.",
		"listing_expires_today":    "🔥 Verloopt vandaag!",
		"recent_header":            "📄 Recente advertenties ({count} in de laatste 3 dagen)",
		"closing_header":           "⏳ Open advertenties ({count}), eerst verlopend bovenaan",
		"no_open_listings":         "😕 Er zijn nu geen open advertenties.",

		"help_text": "🤖 WH Bot Help\n\n" +
			"/start - abonneren op meldingen\n" +
			"/stop - afmelden\n" +
			"/recent - advertenties van de laatste 3 dagen\n" +
			"/recent closing - open advertenties op sluitingsdatum\n" +
			"/tracker - link tracking aan of uit\n" +
			"/lang - taal wijzigen\n" +
			"/tz - tijdzone instellen\n\n" +
			"De bot controleert elke {interval} op nieuwe advertenties.",
		"unknown_command": "🤔 Onbekend commando. Stuur /help voor de lijst met commando's.",
	},
}
