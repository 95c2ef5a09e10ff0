package bot

const (
	msgStart = `👋 Привет! Я бот, который может пересказать фильм от лица твоего бухого деда.

Доступные команды:

🎬 /set_movie – Выбрать фильм для пересказа.

🎭 /set_style – Выбрать кастомный стиль (режиссёр, жанр и т.д.).
Стиль по умолчанию - 'Бухой дед'.

📤 /generate_summary – Сгенерировать пересказ фильма.

ℹ️ /info – Посмотреть информацию о себе: подписка, лимиты и текущие настройки.

💎 /subscribe – Оформить подписку (даёт больше запросов в день).`

	msgHelp = `Доступные команды:

🎬 /set_movie – Выбрать фильм для пересказа.

🎭 /set_style – Выбрать кастомный стиль для пересказа

📤 /generate_summary – Сгенерировать пересказ фильма.

ℹ️ /info – Посмотреть информацию о себе: подписка, лимиты и текущие настройки.

💎 /subscribe – Оформить подписку (даёт больше запросов в день).`

	msgAskMovie  = "🎬 Введите название фильма:"
	msgAskStyle  = "🎨 Введите стиль:\n(Для того, чтобы выбрать стиль по умолчанию, введите 'Бухой дед')"
	msgMovieSet  = "✅ Фильм сохранён: %s"
	msgStyleSet  = "✅ Стиль сохранён: %s"
	msgInfoError = "Ошибка получения информации."

	msgInfo = `ℹ️ Информация о пользователе:

🔹 telegram_id: %d
🔹 Подписка: %s
🔹 Лимит запросов в день: %d
🔹 Запросов за сегодня: %d

🎬 Фильм: %s
🎭 Стиль: %s`

	msgSubscriptionActive   = "✅ Активна(до %s)"
	msgSubscriptionInactive = "❌ Не активна"
	msgMovieUnset           = "Не указан"

	msgSubscribeUnavailable = "🚧 Извините, данный сервис пока что не доступен"
	msgSubscribed           = "💎 Подписка оформлена до %s"
	msgSubscribeError       = "❌ Ошибка оформления подписки."

	msgStorageError = "⚠️ Сервис временно недоступен, попробуйте позже."
	msgTooFast      = "⏳ Слишком часто, подождите немного."
)

// displayDate is how dates are shown to users.
const displayDate = "02.01.2006"

// commandDescriptions are the command menu entries, in menu order.
var commandDescriptions = []struct {
	Name        string
	Description string
}{
	{"/start", "Запустить бота"},
	{"/set_movie", "Указать фильм"},
	{"/set_style", "Указать кастомный стиль пересказа"},
	{"/info", "Показать информацию о подписке, лимитах и настройках"},
	{"/subscribe", "Оформить подписку"},
	{"/generate_summary", "Сгенерировать пересказ"},
}
