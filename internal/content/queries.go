package content

// GROQクエリ定義。射影のキー名はデコード側（decode.go）と一致させる。
const (
	categoryProjection = `{
  "id": _id,
  title,
  "slug": slug.current,
  description,
  "imageUrl": image.asset->url
}`

	recipeSummaryProjection = `{
  "id": _id,
  title,
  "slug": slug.current,
  description,
  cookingTime,
  servings,
  "imageUrl": mainImage.asset->url,
  "rank": count(*[_type == "recipe" && _createdAt < ^._createdAt])
}`

	recipeDetailProjection = `{
  "id": _id,
  title,
  "slug": slug.current,
  description,
  cookingTime,
  servings,
  "imageUrl": mainImage.asset->url,
  "rank": count(*[_type == "recipe" && _createdAt < ^._createdAt]),
  ingredients[]{ name, amount, unit },
  steps
}`

	tierProjection = `{
  "id": _id,
  title,
  "slug": slug.current,
  price,
  accessType,
  maxRecipes,
  storageDuration,
  canFavorite,
  maxFavorites,
  expertPlanning
}`

	queryCategories     = `*[_type == "category"] | order(title asc) ` + categoryProjection
	queryCategoryBySlug = `*[_type == "category" && slug.current == $slug][0] ` + categoryProjection
	queryRecipesByCat   = `*[_type == "recipe" && references(*[_type == "category" && slug.current == $slug]._id)] | order(_createdAt asc) ` + recipeSummaryProjection
	queryRecipeBySlug   = `*[_type == "recipe" && slug.current == $slug][0] ` + recipeDetailProjection
	queryRecipeByID     = `*[_type == "recipe" && _id == $id][0] ` + recipeSummaryProjection
	queryTiers          = `*[_type == "subscriptionTier"] | order(price asc) ` + tierProjection
	queryTierBySlug     = `*[_type == "subscriptionTier" && slug.current == $slug][0] ` + tierProjection

	queryOnboardingConfig = `*[_type == "onboardingConfig"][0] {
  title,
  slides[]{ title, body, "imageUrl": image.asset->url }
}`
)
